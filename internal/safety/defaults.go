package safety

import (
	"os"
	"path/filepath"
)

// SystemPaths returns the fixed system path set for goos. There are
// exactly three variants: generic POSIX, POSIX with desktop GUI
// directories (darwin), and Windows program directories.
func SystemPaths(goos string) []string {
	switch goos {
	case "windows":
		drive := os.Getenv("SystemDrive")
		if drive == "" {
			drive = "C:"
		}
		root := drive + `\`
		return []string{
			root,
			root + `Windows`,
			root + `Program Files`,
			root + `Program Files (x86)`,
			root + `ProgramData`,
			root + `Users`,
		}
	case "darwin":
		return []string{
			"/",
			"/Applications",
			"/Library",
			"/System",
			"/Users",
			"/Volumes",
			"/bin",
			"/cores",
			"/dev",
			"/etc",
			"/opt",
			"/private",
			"/sbin",
			"/tmp",
			"/usr",
			"/var",
		}
	default:
		return []string{
			"/",
			"/bin",
			"/boot",
			"/dev",
			"/etc",
			"/home",
			"/lib",
			"/lib32",
			"/lib64",
			"/opt",
			"/proc",
			"/root",
			"/run",
			"/sbin",
			"/srv",
			"/sys",
			"/tmp",
			"/usr",
			"/var",
		}
	}
}

// UserCriticalPaths returns the fixed per-user paths for goos: the home
// directory itself, credential and config directories, and the standard
// personal folders. An empty home yields nothing.
func UserCriticalPaths(goos, home string) []string {
	if home == "" {
		return nil
	}
	join := func(elem ...string) string {
		return filepath.Join(append([]string{home}, elem...)...)
	}

	paths := []string{
		home,
		join(".ssh"),
		join(".gnupg"),
		join(".aws"),
		join(".azure"),
		join(".kube"),
		join(".docker"),
		join("Desktop"),
		join("Documents"),
		join("Downloads"),
		join("Music"),
		join("Pictures"),
	}

	switch goos {
	case "windows":
		paths = append(paths,
			join("AppData"),
			join("AppData", "Roaming"),
			join("AppData", "Local"),
			join("Videos"),
		)
	case "darwin":
		paths = append(paths,
			join("Library"),
			join("Library", "Application Support"),
			join("Library", "Keychains"),
			join("Movies"),
			join(".config"),
		)
	default:
		paths = append(paths,
			join(".config"),
			join(".local", "share"),
			join("Videos"),
		)
	}
	return paths
}

// fixedNamePatterns match basenames that are never deletable: version
// control metadata, credential stores, private keys and secret-like names.
var fixedNamePatterns = []string{
	`^\.(git|svn|hg)$`,
	`^\.(ssh|gnupg|aws|azure|kube|docker)$`,
	`^\.env(\..+)?$`,
	`^\.(netrc|npmrc|pypirc|pgpass|git-credentials)$`,
	`^id_(rsa|dsa|ecdsa|ed25519)$`,
	`(?i)\.(pem|key|p12|pfx|kdbx|keystore|jks)$`,
	`(?i)^credentials?(\..+)?$`,
	`(?i)secret`,
}
