package parser

// HackingTools is the allow-list of package/process names treated as
// security tooling by the dpkg parser (PACKAGE_INSTALL severity bump)
// and by rules PROC_001/FILE_001 (pkg/rules). Names are lowercase.
var HackingTools = map[string]bool{
	"nmap":       true,
	"netcat":     true,
	"ncat":       true,
	"nc":         true,
	"socat":      true,
	"hydra":      true,
	"john":       true,
	"hashcat":    true,
	"sqlmap":     true,
	"aircrack-ng": true,
	"nikto":      true,
	"metasploit": true,
	"msfconsole": true,
	"wireshark":  true,
	"tcpdump":    true,
	"ettercap":   true,
	"hping3":     true,
	"medusa":     true,
	"crackmapexec": true,
	"responder":  true,
}
