package version

import "strings"

// Sanitize repairs remote versions whose build number was folded into the
// version string, using the installed app's own pair as ground truth.
// Applying it twice with the same installed version is a no-op.
func Sanitize(remote, installed Version) Version {
	build := strings.TrimSpace(installed.BuildNumber)
	remoteVersion := strings.TrimSpace(remote.VersionNumber)
	if build == "" || remoteVersion == "" {
		return remote
	}

	if strings.TrimSpace(remote.BuildNumber) == "" {
		parts := strings.Split(remoteVersion, ".")
		// "2.4.1.1234" where 1234 is the installed build
		if len(parts) > 1 && parts[len(parts)-1] == build {
			return Version{
				VersionNumber: strings.Join(parts[:len(parts)-1], "."),
				BuildNumber:   build,
			}
		}
		// the whole remote version is a build number
		if remoteVersion == build {
			return Version{BuildNumber: remoteVersion}
		}
	}

	// Apps without a separate build sometimes publish seven-part versions
	// whose first five parts are the installed version.
	if build == strings.TrimSpace(installed.VersionNumber) {
		parts := strings.Split(remoteVersion, ".")
		if len(parts) == 7 {
			remainder := strings.Join(parts[:5], ".")
			if remainder == build {
				out := Version{VersionNumber: remainder, BuildNumber: strings.TrimSpace(remote.BuildNumber)}
				if out.BuildNumber == "" {
					out.BuildNumber = remainder
				}
				return out
			}
		}
	}

	return remote
}
