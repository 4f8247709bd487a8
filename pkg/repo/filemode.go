package repo

import (
	"io/fs"

	"github.com/odvcencio/grit/pkg/object"
)

func modeFromFileInfo(info fs.FileInfo) object.TreeMode {
	if info.Mode()&0o111 != 0 {
		return object.TreeModeExecutable
	}
	return object.TreeModeFile
}

func filePermFromMode(mode object.TreeMode) fs.FileMode {
	if mode == object.TreeModeExecutable {
		return 0o755
	}
	return 0o644
}
