package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	announceURLs        []string
	torrentOutputDir    string
	overwriteTorrents   bool
	generateMagnetLinks bool
)

var torrentCmd = &cobra.Command{
	Use:   "torrent",
	Short: "Generate a .torrent file for the release artifacts",
	Long: `Generates a BitTorrent metainfo (.torrent) file covering the whole
artifact directory so a release can be mirrored over BitTorrent. You
must specify tracker announce URLs via flags or config.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := globalConfig

		trackers := announceURLs
		if len(trackers) == 0 {
			trackers = cfg.Torrent.Trackers
		}
		if len(trackers) == 0 {
			return errors.New("at least one --announce URL is required")
		}

		outputDir := torrentOutputDir
		if outputDir == "" {
			outputDir = cfg.Torrent.OutputDir
		}
		overwrite := overwriteTorrents || cfg.Torrent.Overwrite
		magnet := generateMagnetLinks || cfg.Torrent.MagnetLinks

		torrentPath, magnetPath, magnetURI, err := generateTorrentFile(cfg.OutputPath, trackers, outputDir, overwrite, magnet)
		if err != nil {
			return err
		}
		log.Infof("Torrent written to %s", torrentPath)
		if magnetPath != "" {
			log.Infof("Magnet link written to %s", magnetPath)
		}
		if magnetURI != "" {
			fmt.Println(magnetURI)
		}
		return nil
	},
}

func init() {
	torrentCmd.Flags().StringSliceVar(&announceURLs, "announce", nil, "Tracker announce URL (repeatable)")
	torrentCmd.Flags().StringVar(&torrentOutputDir, "out-dir", "", "Directory for the .torrent file (overrides config)")
	torrentCmd.Flags().BoolVar(&overwriteTorrents, "overwrite", false, "Replace an existing .torrent file")
	torrentCmd.Flags().BoolVar(&generateMagnetLinks, "magnet", false, "Also write a magnet link file")
	rootCmd.AddCommand(torrentCmd)
}

// generateTorrentFile creates a .torrent file for the given sourcePath
// (directory). It can optionally also create a text file containing the
// magnet link. It returns the path to the generated .torrent file, the
// magnet link file (if created) and the magnet URI string.
func generateTorrentFile(sourcePath string, trackers []string, outputDir string, overwrite bool, magnetLinks bool) (torrentFilePath string, magnetFilePath string, magnetURI string, err error) {
	if err := validateSourcePath(sourcePath); err != nil {
		return "", "", "", err
	}

	outPath, err := determineOutputPath(sourcePath, outputDir)
	if err != nil {
		return "", "", "", err
	}
	torrentFilePath = outPath

	if !overwrite {
		if _, statErr := os.Stat(outPath); statErr == nil {
			log.WithField("path", outPath).Info("Skipping existing torrent file (use --overwrite to replace)")
			return torrentFilePath, "", "", nil
		}
	}

	mi, info, err := createTorrentMetainfo(sourcePath, trackers)
	if err != nil {
		return "", "", "", err
	}

	if err := writeTorrentFile(outPath, mi); err != nil {
		return torrentFilePath, "", "", err
	}
	log.WithField("path", outPath).Info("Successfully generated torrent file")

	magnetURI = generateMagnetURI(mi, info)
	if magnetLinks {
		magnetFilePath, err = writeMagnetFile(outPath, magnetURI, overwrite)
		if err != nil {
			log.WithError(err).Warn("Could not write magnet link file")
			err = nil
		}
	}
	return torrentFilePath, magnetFilePath, magnetURI, nil
}

// validateSourcePath checks if the source path exists and is a directory
func validateSourcePath(sourcePath string) error {
	stat, err := os.Stat(sourcePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("source path does not exist: %s", sourcePath)
	}
	if err != nil {
		return fmt.Errorf("error stating source path %s: %w", sourcePath, err)
	}
	if !stat.IsDir() {
		return fmt.Errorf("source path is not a directory: %s", sourcePath)
	}
	return nil
}

// determineOutputPath determines where the torrent file should be written
func determineOutputPath(sourcePath, outputDir string) (string, error) {
	torrentFileName := fmt.Sprintf("%s.torrent", filepath.Base(sourcePath))

	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0o750); err != nil {
			return "", fmt.Errorf("error creating output directory %s: %w", outputDir, err)
		}
		return filepath.Join(outputDir, torrentFileName), nil
	}
	return filepath.Join(filepath.Dir(sourcePath), torrentFileName), nil
}

// createTorrentMetainfo creates the torrent metainfo and info structures
func createTorrentMetainfo(sourcePath string, trackers []string) (*metainfo.MetaInfo, metainfo.Info, error) {
	mi := metainfo.MetaInfo{}

	validTrackers := validateTrackers(trackers)
	if len(validTrackers) == 0 {
		return nil, metainfo.Info{}, errors.New("no valid tracker URLs provided")
	}
	mi.Announce = validTrackers[0]
	mi.AnnounceList = make([][]string, 1)
	mi.AnnounceList[0] = validTrackers

	mi.CreatedBy = "fontdb"
	mi.CreationDate = time.Now().Unix()

	const pieceLength = 512 * 1024 // 512 KiB
	info := metainfo.Info{
		PieceLength: pieceLength,
		Name:        filepath.Base(sourcePath),
	}

	log.WithField("directory", sourcePath).Debug("Building torrent info...")
	if err := info.BuildFromFilePath(sourcePath); err != nil {
		return nil, metainfo.Info{}, fmt.Errorf("error building torrent info from path %s: %w", sourcePath, err)
	}
	if len(info.Files) == 0 && info.Length == 0 {
		return nil, metainfo.Info{}, fmt.Errorf("no files added to torrent info from %s", sourcePath)
	}

	infoBytes, err := bencode.Marshal(info)
	if err != nil {
		return nil, metainfo.Info{}, fmt.Errorf("error marshaling torrent info: %w", err)
	}
	mi.InfoBytes = infoBytes

	return &mi, info, nil
}

// validateTrackers validates tracker URLs and returns only valid ones
func validateTrackers(trackers []string) []string {
	validTrackers := make([]string, 0, len(trackers))
	for _, tracker := range trackers {
		parsedURL, err := url.Parse(tracker)
		if err != nil || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https" && parsedURL.Scheme != "udp") {
			log.WithError(err).WithField("tracker", tracker).Warn("Invalid or unsupported tracker URL provided, skipping.")
			continue
		}
		validTrackers = append(validTrackers, tracker)
	}
	return validTrackers
}

// writeTorrentFile writes the torrent metainfo to a file
func writeTorrentFile(outPath string, mi *metainfo.MetaInfo) error {
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("error creating torrent file %s: %w", outPath, err)
	}
	if err := mi.Write(f); err != nil {
		f.Close()
		if removeErr := os.Remove(outPath); removeErr != nil && !os.IsNotExist(removeErr) {
			log.WithError(removeErr).Warnf("Failed to remove partially written torrent file %s", outPath)
		}
		return fmt.Errorf("error writing torrent file %s: %w", outPath, err)
	}
	return f.Close()
}

// generateMagnetURI generates a magnet URI from torrent metainfo and info
func generateMagnetURI(mi *metainfo.MetaInfo, info metainfo.Info) string {
	infoHash := mi.HashInfoBytes()
	magnetParts := []string{
		fmt.Sprintf("magnet:?xt=urn:btih:%s", infoHash.HexString()),
		fmt.Sprintf("dn=%s", url.QueryEscape(info.Name)),
	}
	for _, tier := range mi.AnnounceList {
		for _, tracker := range tier {
			magnetParts = append(magnetParts, fmt.Sprintf("tr=%s", url.QueryEscape(tracker)))
		}
	}
	return strings.Join(magnetParts, "&")
}

// writeMagnetFile writes the magnet URI next to the torrent file.
func writeMagnetFile(torrentPath, magnetURI string, overwrite bool) (string, error) {
	magnetFileName := fmt.Sprintf("%s-magnet.txt", strings.TrimSuffix(filepath.Base(torrentPath), filepath.Ext(torrentPath)))
	magnetOutPath := filepath.Join(filepath.Dir(torrentPath), magnetFileName)

	if !overwrite {
		if _, err := os.Stat(magnetOutPath); err == nil {
			log.WithField("path", magnetOutPath).Info("Skipping existing magnet link file (use --overwrite to replace)")
			return magnetOutPath, nil
		}
	}
	if err := os.WriteFile(magnetOutPath, []byte(magnetURI+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("error writing magnet file %s: %w", magnetOutPath, err)
	}
	log.WithField("path", magnetOutPath).Info("Successfully generated magnet link file")
	return magnetOutPath, nil
}
