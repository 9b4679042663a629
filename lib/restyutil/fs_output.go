package restyutil

import (
	"log/slog"
	"os"
	"path/filepath"
)

// FilesystemOutput dumps instrumented request/response pairs into a
// directory, one file per exchange. The directory is wiped on startup
// so a debugging session only sees traffic from the current run.
type FilesystemOutput struct {
	dir string
}

func NewFilesystemOutput(dir string) FilesystemOutput {
	os.RemoveAll(dir)
	err := os.MkdirAll(dir, 0777)
	if err != nil {
		panic(err)
	}
	return FilesystemOutput{dir: dir}
}

func (o FilesystemOutput) Write(id string, contents string) {
	path := filepath.Join(o.dir, id)
	err := os.WriteFile(path, []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to dump instrumented exchange", "path", path, "err", err)
	}
}
