package rules

import "strings"

// sensitivePaths are referenced by FILE_001 (LOG_001 uses
// criticalLogPaths and PER_001 uses cronPaths); grounded in
// original_source's rule definitions for "sensitive file access" and
// "persistence via cron".
var sensitivePaths = []string{
	"/etc/shadow",
	"/etc/sudoers",
	"authorized_keys",
	"/etc/crontab",
}

var criticalLogPaths = []string{
	"/var/log/auth.log",
	"/var/log/syslog",
	"/var/log/wtmp",
	"/var/log/btmp",
	".bash_history",
	".zsh_history",
}

var cronPaths = []string{
	"/etc/cron",
	"/var/spool/cron",
	"crontab",
}

var shellNames = map[string]bool{
	"sh": true, "bash": true, "zsh": true, "dash": true, "rbash": true,
}

var suspiciousShellParents = map[string]bool{
	"python": true, "php": true, "node": true, "perl": true,
	"nc": true, "netcat": true, "socat": true, "lua": true,
}

func containsAny(haystack string, needles []string) bool {
	lower := strings.ToLower(haystack)
	for _, n := range needles {
		if strings.Contains(lower, strings.ToLower(n)) {
			return true
		}
	}
	return false
}
