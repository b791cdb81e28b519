package policy

import "regexp"

// credentialPatterns cover API keys, bearer tokens, PEM private key headers,
// password assignments, and AWS key patterns.
var credentialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*['"][\w-]{16,}['"]`),
	regexp.MustCompile(`(?i)bearer\s+[a-z0-9._-]{20,}`),
	regexp.MustCompile(`-----BEGIN (RSA |EC |DSA )?PRIVATE KEY-----`),
	regexp.MustCompile(`(?i)password\s*[:=]\s*['"][^'"]{4,}['"]`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
}

// telemetryPatterns cover common analytics/telemetry SDK signatures.
var telemetryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)google-?analytics|gtag\(`),
	regexp.MustCompile(`(?i)segment\.(io|com)|analytics\.track\(`),
	regexp.MustCompile(`(?i)mixpanel|amplitude\.track`),
}

// licensePatterns flag both license-file names and license-keyword lines.
var licensePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^LICENSE(\.\w+)?$`),
	regexp.MustCompile(`(?i)^COPYING(\.\w+)?$`),
	regexp.MustCompile(`(?i)\b(MIT License|Apache License|GNU General Public License)\b`),
}

// sensitiveFiles lists paths whose deletion is always a violation.
var sensitiveFiles = []string{
	".env", ".env.local", ".env.production",
	"credentials", "credentials.json",
	".ssh/", "id_rsa", "id_dsa",
	"*.pem", "*.key",
	".aws/", ".gcloud/", ".azure/",
	".git/config",
}

// dangerousCommandWarnings are substrings that cause a warning.
var dangerousCommandWarnings = []string{
	"rm -rf", "chmod 777", "curl | sh", "curl |sh", "curl -s | bash",
	"npm install -g", "pip install --user", "yarn global add",
	"git push --force", "git reset --hard",
	"terraform apply", "kubectl delete", "aws ", "gcloud ",
}

// dangerousCommandViolations are substrings that always cause a violation:
// privilege escalation and system-service mutation.
var dangerousCommandViolations = []string{
	"sudo ", "su -", "su root",
	"systemctl stop", "systemctl disable", "service stop",
	"shutdown ", "reboot",
}
