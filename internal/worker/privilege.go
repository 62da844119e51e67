package worker

import (
	"os/user"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/opendap-hyrax/besd/internal/errs"
)

// DropPrivileges resolves userSpec/groupSpec (a name, or a "#NNN" literal
// uid/gid form per spec §4.5) and calls setgid then setuid, in that
// order — setgid must happen first since dropping the uid away from
// root removes the ability to change the gid afterward.
//
// Invariant (spec §4.5): if the resolved uid is still 0 after the drop,
// startup must fail rather than continue running as root.
func DropPrivileges(userSpec, groupSpec string) error {
	uid, err := resolveID(userSpec, lookupUser)
	if err != nil {
		return err
	}
	gid, err := resolveID(groupSpec, lookupGroup)
	if err != nil {
		return err
	}

	if err := unix.Setgid(gid); err != nil {
		return errs.Wrap(errs.InternalFatal, "setgid failed", err)
	}
	if err := unix.Setuid(uid); err != nil {
		return errs.Wrap(errs.InternalFatal, "setuid failed", err)
	}
	if unix.Getuid() == 0 {
		return errs.New(errs.InternalFatal, "refusing to continue running as uid 0 after privilege drop")
	}
	return nil
}

func lookupUser(name string) (int, error) {
	u, err := user.Lookup(name)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(u.Uid)
}

func lookupGroup(name string) (int, error) {
	g, err := user.LookupGroup(name)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(g.Gid)
}

func resolveID(spec string, lookup func(string) (int, error)) (int, error) {
	if strings.HasPrefix(spec, "#") {
		id, err := strconv.Atoi(strings.TrimPrefix(spec, "#"))
		if err != nil {
			return 0, errs.Wrap(errs.InternalFatal, "invalid #NNN id form", err)
		}
		return id, nil
	}
	id, err := lookup(spec)
	if err != nil {
		return 0, errs.Wrap(errs.InternalFatal, "could not resolve user/group name", err)
	}
	return id, nil
}
