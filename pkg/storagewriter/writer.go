// Package storagewriter copies a resource byte stream into a destination
// writer with progress reporting, generalizing pkg/storage/writer.go's
// WriteImageToDisk (which copied a local image file into a fixed block
// device path) from "disk path" to any io.Writer, so it can drive a real
// block device in production and an in-memory buffer in tests alike.
package storagewriter

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
)

// CopyOptions configures a Write call's progress reporting.
type CopyOptions struct {
	// TotalSize, if known, sizes the progress bar; 0 renders a spinner.
	TotalSize int64
	// Label is the progress bar's leading description, e.g. "writing".
	Label string
	// Quiet suppresses the progress bar entirely, used by tests.
	Quiet bool
}

// Write copies src to dst in blockSize chunks, reporting progress via
// schollz/progressbar the same way WriteImageToDisk does, returning the
// total number of bytes copied.
func Write(dst io.Writer, src io.Reader, blockSize int, opts CopyOptions) (int64, error) {
	if blockSize <= 0 {
		blockSize = 4 * 1024 * 1024
	}

	var bar *progressbar.ProgressBar
	if !opts.Quiet {
		label := opts.Label
		if label == "" {
			label = "writing"
		}
		if opts.TotalSize > 0 {
			bar = progressbar.DefaultBytes(opts.TotalSize, label)
		} else {
			bar = progressbar.DefaultBytes(-1, label)
		}
	}

	buffer := make([]byte, blockSize)
	var total int64
	for {
		n, err := src.Read(buffer)
		if n > 0 {
			if _, werr := dst.Write(buffer[:n]); werr != nil {
				return total, fmt.Errorf("storagewriter: writing: %w", werr)
			}
			total += int64(n)
			if bar != nil {
				_ = bar.Add(n)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, fmt.Errorf("storagewriter: reading: %w", err)
		}
	}
	return total, nil
}
