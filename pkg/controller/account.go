package controller

import (
	"errors"
	"fmt"
	"os/exec"
	"os/user"
	"strconv"
)

// maxProvisionRetries bounds the ensureAccount recursion: a lookup miss
// triggers one useradd attempt and one further lookup, never more. A
// persistently broken provisioning path fails loudly instead of looping.
const maxProvisionRetries = 1

// ensureAccount resolves client's uid/gid via the system account database,
// provisioning a nologin account and group on a miss. attempt tracks
// recursion depth; callers pass 0.
func ensureAccount(client ClientName, attempt int) (uid, gid uint32, err error) {
	u, err := user.Lookup(client.String())
	if err == nil {
		return parseUintID(u.Uid, u.Gid)
	}

	var unknown user.UnknownUserError
	if !errors.As(err, &unknown) {
		return 0, 0, fmt.Errorf("controller: lookup account %q: %w", client, err)
	}

	if attempt >= maxProvisionRetries {
		return 0, 0, fmt.Errorf("controller: account %q not found after provisioning", client)
	}

	if err := provisionAccount(client); err != nil {
		return 0, 0, err
	}

	return ensureAccount(client, attempt+1)
}

func provisionAccount(client ClientName) error {
	cmd := exec.Command("useradd", "-s", "/sbin/nologin", "-U", client.String())
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("controller: useradd %q: %w: %s", client, err, out)
	}
	return nil
}

func parseUintID(uidStr, gidStr string) (uint32, uint32, error) {
	uid, err := strconv.ParseUint(uidStr, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("controller: parse uid %q: %w", uidStr, err)
	}
	gid, err := strconv.ParseUint(gidStr, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("controller: parse gid %q: %w", gidStr, err)
	}
	return uint32(uid), uint32(gid), nil
}
