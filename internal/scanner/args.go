package scanner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/codescan-io/codescan/internal/qualitygate"
)

const (
	propHostURL      = "-Dsonar.host.url"
	propOrganization = "-Dsonar.organization"
	propProjectKey   = "-Dsonar.projectKey"
	propLogin        = "-Dsonar.login"
	propPassword     = "-Dsonar.password"
	propWorkDir      = "-Dsonar.working.directory="

	// DefaultServerURL is used when neither configuration nor the scanner
	// properties name a server.
	DefaultServerURL = "https://app.codescan.io"
)

var (
	ErrDuplicateValue = errors.New("value given both as option and as -D property")
	ErrNoOrganization = errors.New("organization required for codescan.io, set --organization")
	ErrTokenAndUser   = errors.New("use either --token or --username/--password, not both")
	ErrOnlyUserOrPass = errors.New("--username and --password must be given together")
	ErrInvalidServer  = errors.New("server url must start with http:// or https://")
	ErrMissingWorkDir = errors.New("no scanner working directory")
	ErrMissingScanner = errors.New("no scanner executable, set --scanner or --scanner-jar")
)

// ArgsConfig is the configured side of a scanner command line.
type ArgsConfig struct {
	// Java and Jar select `java -jar <Jar>`, Scanner a sonar-scanner
	// executable. Scanner wins when both are set.
	Java    string
	Jar     string
	Scanner string

	ServerURL    string
	Organization string
	ProjectKey   string
	Credentials  qualitygate.Credentials

	DefaultWorkDir string
}

// Plan is the resolved scanner invocation plus the credentials the quality
// gate requests must carry.
type Plan struct {
	Invocation  Invocation
	ServerURL   string
	Credentials qualitygate.Credentials
	// Anonymous is set when no credentials are known at all.
	Anonymous bool
}

// BuildArgs merges cfg with the pass-through arguments in varargs.
//
// -X<option> JVM options are moved in front of -jar (a bare -X is the
// scanner debug switch and stays a scanner argument). Settings given both in
// cfg and as a -D property are rejected. The working directory comes from
// the first -Dsonar.working.directory= property, matched by exact prefix,
// and falls back to cfg.DefaultWorkDir.
func BuildArgs(cfg ArgsConfig, varargs []string) (Plan, error) {
	var jvm, rest []string
	for _, a := range varargs {
		if strings.HasPrefix(a, "-X") && a != "-X" {
			jvm = append(jvm, a)
			continue
		}
		rest = append(rest, a)
	}

	var args, env []string
	var path string
	switch {
	case cfg.Scanner != "":
		path = cfg.Scanner
		if len(jvm) > 0 {
			env = append(env, "SONAR_SCANNER_OPTS="+strings.Join(jvm, " "))
		}
	case cfg.Jar != "":
		path = cfg.Java
		if path == "" {
			path = "java"
		}
		args = append(args, jvm...)
		args = append(args, "-jar", cfg.Jar)
	default:
		return Plan{}, ErrMissingScanner
	}

	server, inline := property(rest, propHostURL)
	switch {
	case cfg.ServerURL != "" && inline:
		return Plan{}, fmt.Errorf("%w: server", ErrDuplicateValue)
	case cfg.ServerURL != "":
		server = cfg.ServerURL
	case !inline:
		server = DefaultServerURL
	}
	if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
		return Plan{}, fmt.Errorf("%w: %q", ErrInvalidServer, server)
	}
	if !inline {
		args = append(args, propHostURL+"="+server)
	}

	if cfg.Organization != "" {
		if _, ok := property(rest, propOrganization); ok {
			return Plan{}, fmt.Errorf("%w: organization", ErrDuplicateValue)
		}
		args = append(args, propOrganization+"="+cfg.Organization)
	} else if _, ok := property(rest, propOrganization); !ok && strings.HasSuffix(server, "codescan.io") {
		return Plan{}, ErrNoOrganization
	}

	creds, err := resolveCredentials(cfg.Credentials, rest)
	if err != nil {
		return Plan{}, err
	}
	switch {
	case cfg.Credentials.Token != "":
		args = append(args, propLogin+"="+cfg.Credentials.Token)
	case cfg.Credentials.Username != "":
		args = append(args, propLogin+"="+cfg.Credentials.Username, propPassword+"="+cfg.Credentials.Password)
	}

	if cfg.ProjectKey != "" {
		if _, ok := property(rest, propProjectKey); ok {
			return Plan{}, fmt.Errorf("%w: projectkey", ErrDuplicateValue)
		}
		args = append(args, propProjectKey+"="+cfg.ProjectKey)
	}

	workDir, ok := workingDirectory(rest)
	if !ok {
		if cfg.DefaultWorkDir == "" {
			return Plan{}, ErrMissingWorkDir
		}
		workDir = cfg.DefaultWorkDir
		args = append(args, propWorkDir+workDir)
	}

	args = append(args, rest...)

	inv := NewInvocation(path, args, workDir)
	inv.Env = env
	return Plan{
		Invocation:  inv,
		ServerURL:   server,
		Credentials: creds,
		Anonymous:   creds.IsZero(),
	}, nil
}

// resolveCredentials settles on the one credential source used both by the
// scanner and by the quality gate requests.
func resolveCredentials(c qualitygate.Credentials, rest []string) (qualitygate.Credentials, error) {
	login, hasLogin := property(rest, propLogin)
	password, hasPassword := property(rest, propPassword)

	if hasLogin || hasPassword {
		if c.Token != "" || (c.Username != "" && c.Password != "") {
			return qualitygate.Credentials{}, fmt.Errorf("%w: token/username/password", ErrDuplicateValue)
		}
		if !c.IsZero() {
			return qualitygate.Credentials{}, ErrOnlyUserOrPass
		}
		if hasPassword {
			if login == "" {
				return qualitygate.Credentials{}, ErrOnlyUserOrPass
			}
			return qualitygate.Credentials{Username: login, Password: password}, nil
		}
		return qualitygate.Credentials{Token: login}, nil
	}

	switch {
	case c.Token != "" && (c.Username != "" || c.Password != ""):
		return qualitygate.Credentials{}, ErrTokenAndUser
	case c.Token != "":
		return qualitygate.Credentials{Token: c.Token}, nil
	case c.Username != "" && c.Password != "":
		return c, nil
	case c.Username != "" || c.Password != "":
		return qualitygate.Credentials{}, ErrOnlyUserOrPass
	}
	return qualitygate.Credentials{}, nil
}

// property returns the value of the first -D argument named name, either as
// "name=value" or as a bare "name".
func property(args []string, name string) (string, bool) {
	for _, a := range args {
		if a == name {
			return "", true
		}
		if v, ok := strings.CutPrefix(a, name+"="); ok {
			return v, true
		}
	}
	return "", false
}

func workingDirectory(args []string) (string, bool) {
	for _, a := range args {
		if v, ok := strings.CutPrefix(a, propWorkDir); ok {
			return v, true
		}
	}
	return "", false
}
