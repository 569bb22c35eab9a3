package common

import (
	"fmt"
	"io/fs"
	"os"
	"syscall"
)

const dataDirPerm = fs.FileMode(0o700)

// ensureDataDir creates the data directory when missing. An existing one
// must be a directory owned by the current user and closed to everyone else,
// since it holds the enclave identity key.
func ensureDataDir(dir string) error {
	fi, err := os.Lstat(dir)
	switch {
	case os.IsNotExist(err):
		return os.MkdirAll(dir, dataDirPerm)
	case err != nil:
		return err
	case !fi.IsDir():
		return fmt.Errorf("data directory '%s' is not a directory", dir)
	case fi.Mode().Perm() != dataDirPerm:
		return fmt.Errorf("data directory '%s' has permissions %v, expected %v", dir, fi.Mode().Perm(), dataDirPerm)
	}

	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return nil
	}
	if uid := os.Geteuid(); int(st.Uid) != uid {
		return fmt.Errorf("data directory '%s' is owned by %d, expected %d", dir, st.Uid, uid)
	}
	return nil
}
