package sideload

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/arthur-debert/synthfs/pkg/synthfs"
	"github.com/arthur-debert/synthfs/pkg/synthfs/filesystem"

	"github.com/arthur-debert/appsweep/pkg/errors"
)

// newStagingFS returns the filesystem wrapper metadata is written through.
// Paths handed to it are absolute.
func newStagingFS() filesystem.FullFileSystem {
	osfs := filesystem.NewOSFileSystem("/")
	return synthfs.NewPathAwareFileSystem(osfs, "/").WithAbsolutePaths()
}

// writeWrapperFiles writes files into dir as a single synthfs pipeline.
// A failed write rolls back the files already created.
func writeWrapperFiles(ctx context.Context, fsys filesystem.FullFileSystem, dir string, files map[string][]byte) error {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	sfs := synthfs.New()
	ops := make([]synthfs.Operation, 0, len(names))
	for _, name := range names {
		id := fmt.Sprintf("wrapper_%s_%s", filepath.Base(filepath.Dir(dir)), name)
		ops = append(ops, sfs.CreateFileWithID(id, filepath.Join(dir, name), files[name], 0o644))
	}
	if len(ops) == 0 {
		return nil
	}

	options := synthfs.DefaultPipelineOptions()
	options.RollbackOnError = true
	if _, err := synthfs.RunWithOptions(ctx, fsys, options, ops...); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot write wrapper metadata in %s", dir)
	}
	return nil
}
