package downloader

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/mholt/archives"

	"github.com/nickmerrett/iso-downloader/internal/logger"
	pkgerrors "github.com/nickmerrett/iso-downloader/pkg/errors"
	"github.com/nickmerrett/iso-downloader/pkg/fsutil"
)

// Decompress unpacks a compressed image (e.g. .iso.xz, .iso.gz) in place and
// removes the compressed original. Files that are not compressed are
// returned unchanged. Returns the path of the usable image.
func Decompress(ctx context.Context, srcPath string) (string, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return "", pkgerrors.Wrap(err, "could not open downloaded file")
	}
	defer func() { _ = src.Close() }()

	format, stream, err := archives.Identify(ctx, srcPath, src)
	if err != nil {
		if errors.Is(err, archives.NoMatch) {
			return srcPath, nil
		}
		return "", pkgerrors.Wrap(err, "could not identify file format")
	}

	compression, ok := format.(archives.Compression)
	if !ok {
		// An archive rather than a plain compressed stream; leave it alone.
		return srcPath, nil
	}

	reader, err := compression.OpenReader(stream)
	if err != nil {
		return "", pkgerrors.Wrap(err, "could not open compressed stream")
	}
	defer func() { _ = reader.Close() }()

	destPath := strings.TrimSuffix(srcPath, compression.Extension())
	if destPath == srcPath {
		destPath = srcPath + ".unpacked"
	}

	dest, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fsutil.FileModeDefault)
	if err != nil {
		return "", pkgerrors.Wrap(err, "could not create unpacked file")
	}
	if _, err := io.Copy(dest, reader); err != nil {
		_ = dest.Close()
		_ = os.Remove(destPath)
		return "", pkgerrors.Wrap(err, "could not unpack file")
	}
	if err := dest.Close(); err != nil {
		return "", pkgerrors.Wrap(err, "could not close unpacked file")
	}

	_ = src.Close()
	if err := os.Remove(srcPath); err != nil {
		logger.Warn("Could not remove compressed original", logger.Fields{
			"path":  srcPath,
			"error": err.Error(),
		})
	}

	logger.Debug("Unpacked compressed image", logger.Fields{"from": srcPath, "to": destPath})
	return destPath, nil
}
