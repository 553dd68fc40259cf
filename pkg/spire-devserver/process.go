package spiredevserver

import (
	"context"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/process"
)

// resolveProcess fills in the caller's binary name, and its groups when the
// kernel did not report them, from the process table. Failures are not
// errors: the process may have exited, or we may lack permission to inspect
// it.
func resolveProcess(ctx context.Context, info *CallerInfo) {
	pid, ok := info.Identity.PID()
	if !ok {
		return
	}

	proc, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return
	}

	if exe, err := proc.ExeWithContext(ctx); err == nil && exe != "" {
		info.BinaryName = filepath.Base(exe)
	}

	if info.Groups == nil {
		if gids, err := proc.GroupsWithContext(ctx); err == nil {
			groups := make([]uint32, 0, len(gids))
			for _, gid := range gids {
				groups = append(groups, uint32(gid))
			}
			info.Groups = groups
		}
	}
}
