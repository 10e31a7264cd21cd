package proxy

import "strings"

// isAllowedPort reports whether hostPort's port (the substring after its
// first colon) is in allowed. A missing colon is always disallowed; an
// empty allowed set allows any port.
func isAllowedPort(hostPort string, allowed map[string]struct{}) bool {
	sep := strings.IndexByte(hostPort, ':')
	if sep < 0 {
		return false
	}
	if len(allowed) == 0 {
		return true
	}
	_, ok := allowed[hostPort[sep+1:]]
	return ok
}

func allowedPortSet(ports []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ports))
	for _, p := range ports {
		set[p] = struct{}{}
	}
	return set
}
