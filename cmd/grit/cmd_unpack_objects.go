package main

import (
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/odvcencio/grit/pkg/object"
	"github.com/odvcencio/grit/pkg/repo"
	"github.com/spf13/cobra"
)

func newUnpackObjectsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "unpack-objects [packfile]",
		Short: "Store every object of a pack file (standard input when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}

			var data []byte
			if len(args) == 1 {
				f, m, err := openMap(args[0])
				if err != nil {
					return fmt.Errorf("unpack-objects: %w", err)
				}
				defer f.Close()
				defer m.Unmap()
				data = m
			} else {
				if data, err = io.ReadAll(cmd.InOrStdin()); err != nil {
					return fmt.Errorf("unpack-objects: read stdin: %w", err)
				}
			}

			hdr, entries, err := object.ReadPackFile(data)
			if err != nil {
				return fmt.Errorf("unpack-objects: %w", err)
			}
			n, err := repo.UnpackPack(r.Store, entries, int(hdr.NumObjects))
			if err != nil {
				return fmt.Errorf("unpack-objects: %w", err)
			}
			e.logger.Debug("pack unpacked", "entries", hdr.NumObjects, "objects", n)
			fmt.Fprintf(cmd.OutOrStdout(), "unpacked %d objects\n", n)
			return nil
		},
	}
}

// openMap maps filename read-only. An empty file cannot be mapped and is
// reported as a truncated pack.
func openMap(filename string) (*os.File, mmap.MMap, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if info.Size() == 0 {
		f.Close()
		return nil, nil, fmt.Errorf("%s: empty pack file", filename)
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, m, nil
}
