package scanner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codescan-io/codescan/internal/qualitygate"
)

func TestBuildArgs(t *testing.T) {
	t.Parallel()

	base := ArgsConfig{
		Java:           "/opt/jdk/bin/java",
		Jar:            "/opt/scanner/sonar-scanner-cli.jar",
		ServerURL:      "https://sonar.example.com",
		ProjectKey:     "my-project",
		Credentials:    qualitygate.Credentials{Token: "squ_1"},
		DefaultWorkDir: "/cache/codescan/sonarworker",
	}

	tests := []struct {
		name      string
		cfg       func(ArgsConfig) ArgsConfig
		varargs   []string
		wantPath  string
		wantArgs  []string
		wantEnv   []string
		wantDir   string
		wantCreds qualitygate.Credentials
		wantErr   error
	}{
		{
			name:     "defaults",
			varargs:  []string{"-Dsonar.verbose=true"},
			wantPath: "/opt/jdk/bin/java",
			wantArgs: []string{
				"-jar", "/opt/scanner/sonar-scanner-cli.jar",
				"-Dsonar.host.url=https://sonar.example.com",
				"-Dsonar.login=squ_1",
				"-Dsonar.projectKey=my-project",
				"-Dsonar.working.directory=/cache/codescan/sonarworker",
				"-Dsonar.verbose=true",
			},
			wantDir:   "/cache/codescan/sonarworker",
			wantCreds: qualitygate.Credentials{Token: "squ_1"},
		},
		{
			name:     "jvm options hoisted, bare -X kept",
			varargs:  []string{"-X", "-Xmx2g", "-Dsonar.sources=src", "-Xss4m"},
			wantPath: "/opt/jdk/bin/java",
			wantArgs: []string{
				"-Xmx2g", "-Xss4m",
				"-jar", "/opt/scanner/sonar-scanner-cli.jar",
				"-Dsonar.host.url=https://sonar.example.com",
				"-Dsonar.login=squ_1",
				"-Dsonar.projectKey=my-project",
				"-Dsonar.working.directory=/cache/codescan/sonarworker",
				"-X", "-Dsonar.sources=src",
			},
			wantDir:   "/cache/codescan/sonarworker",
			wantCreds: qualitygate.Credentials{Token: "squ_1"},
		},
		{
			name: "scanner executable takes jvm options from env",
			cfg: func(c ArgsConfig) ArgsConfig {
				c.Scanner = "/usr/bin/sonar-scanner"
				return c
			},
			varargs:  []string{"-Xmx1g"},
			wantPath: "/usr/bin/sonar-scanner",
			wantArgs: []string{
				"-Dsonar.host.url=https://sonar.example.com",
				"-Dsonar.login=squ_1",
				"-Dsonar.projectKey=my-project",
				"-Dsonar.working.directory=/cache/codescan/sonarworker",
			},
			wantEnv:   []string{"SONAR_SCANNER_OPTS=-Xmx1g"},
			wantDir:   "/cache/codescan/sonarworker",
			wantCreds: qualitygate.Credentials{Token: "squ_1"},
		},
		{
			name: "working directory override, first wins, value may contain =",
			varargs: []string{
				"-Dsonar.working.directory=/tmp/a=b",
				"-Dsonar.working.directory=/tmp/second",
			},
			wantPath: "/opt/jdk/bin/java",
			wantArgs: []string{
				"-jar", "/opt/scanner/sonar-scanner-cli.jar",
				"-Dsonar.host.url=https://sonar.example.com",
				"-Dsonar.login=squ_1",
				"-Dsonar.projectKey=my-project",
				"-Dsonar.working.directory=/tmp/a=b",
				"-Dsonar.working.directory=/tmp/second",
			},
			wantDir:   "/tmp/a=b",
			wantCreds: qualitygate.Credentials{Token: "squ_1"},
		},
		{
			name: "inline host url and credentials",
			cfg: func(c ArgsConfig) ArgsConfig {
				c.ServerURL = ""
				c.Credentials = qualitygate.Credentials{}
				c.ProjectKey = ""
				return c
			},
			varargs:  []string{"-Dsonar.host.url=http://localhost:9000", "-Dsonar.login=admin", "-Dsonar.password=admin"},
			wantPath: "/opt/jdk/bin/java",
			wantArgs: []string{
				"-jar", "/opt/scanner/sonar-scanner-cli.jar",
				"-Dsonar.working.directory=/cache/codescan/sonarworker",
				"-Dsonar.host.url=http://localhost:9000", "-Dsonar.login=admin", "-Dsonar.password=admin",
			},
			wantDir:   "/cache/codescan/sonarworker",
			wantCreds: qualitygate.Credentials{Username: "admin", Password: "admin"},
		},
		{
			name: "username and password",
			cfg: func(c ArgsConfig) ArgsConfig {
				c.Credentials = qualitygate.Credentials{Username: "u", Password: "p"}
				c.ProjectKey = ""
				return c
			},
			wantPath: "/opt/jdk/bin/java",
			wantArgs: []string{
				"-jar", "/opt/scanner/sonar-scanner-cli.jar",
				"-Dsonar.host.url=https://sonar.example.com",
				"-Dsonar.login=u", "-Dsonar.password=p",
				"-Dsonar.working.directory=/cache/codescan/sonarworker",
			},
			wantDir:   "/cache/codescan/sonarworker",
			wantCreds: qualitygate.Credentials{Username: "u", Password: "p"},
		},
		{
			name: "codescan.io default requires organization",
			cfg: func(c ArgsConfig) ArgsConfig {
				c.ServerURL = ""
				return c
			},
			wantErr: ErrNoOrganization,
		},
		{
			name:    "duplicate server",
			varargs: []string{"-Dsonar.host.url=http://other"},
			wantErr: ErrDuplicateValue,
		},
		{
			name: "duplicate organization",
			cfg: func(c ArgsConfig) ArgsConfig {
				c.Organization = "org"
				return c
			},
			varargs: []string{"-Dsonar.organization=org2"},
			wantErr: ErrDuplicateValue,
		},
		{
			name:    "duplicate project key",
			varargs: []string{"-Dsonar.projectKey"},
			wantErr: ErrDuplicateValue,
		},
		{
			name:    "inline login with configured token",
			varargs: []string{"-Dsonar.login=other"},
			wantErr: ErrDuplicateValue,
		},
		{
			name: "inline login with configured username and password",
			cfg: func(c ArgsConfig) ArgsConfig {
				c.Credentials = qualitygate.Credentials{Username: "u", Password: "p"}
				return c
			},
			varargs: []string{"-Dsonar.login=other"},
			wantErr: ErrDuplicateValue,
		},
		{
			name: "inline login with configured username only",
			cfg: func(c ArgsConfig) ArgsConfig {
				c.Credentials = qualitygate.Credentials{Username: "u"}
				return c
			},
			varargs: []string{"-Dsonar.login=other"},
			wantErr: ErrOnlyUserOrPass,
		},
		{
			name: "inline password without login",
			cfg: func(c ArgsConfig) ArgsConfig {
				c.Credentials = qualitygate.Credentials{}
				return c
			},
			varargs: []string{"-Dsonar.password=x"},
			wantErr: ErrOnlyUserOrPass,
		},
		{
			name: "token and username",
			cfg: func(c ArgsConfig) ArgsConfig {
				c.Credentials.Username = "u"
				return c
			},
			wantErr: ErrTokenAndUser,
		},
		{
			name: "username without password",
			cfg: func(c ArgsConfig) ArgsConfig {
				c.Credentials = qualitygate.Credentials{Username: "u"}
				return c
			},
			wantErr: ErrOnlyUserOrPass,
		},
		{
			name: "invalid server",
			cfg: func(c ArgsConfig) ArgsConfig {
				c.ServerURL = "sonar.example.com"
				return c
			},
			wantErr: ErrInvalidServer,
		},
		{
			name: "no scanner",
			cfg: func(c ArgsConfig) ArgsConfig {
				c.Jar = ""
				return c
			},
			wantErr: ErrMissingScanner,
		},
		{
			name: "no working directory",
			cfg: func(c ArgsConfig) ArgsConfig {
				c.DefaultWorkDir = ""
				return c
			},
			wantErr: ErrMissingWorkDir,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			if tc.cfg != nil {
				cfg = tc.cfg(cfg)
			}
			plan, err := BuildArgs(cfg, tc.varargs)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantPath, plan.Invocation.Path)
			require.Equal(t, tc.wantArgs, plan.Invocation.Args)
			require.Equal(t, tc.wantEnv, plan.Invocation.Env)
			require.Equal(t, tc.wantDir, plan.Invocation.WorkDir)
			require.Equal(t, tc.wantCreds, plan.Credentials)
			require.Equal(t, tc.wantCreds.IsZero(), plan.Anonymous)
		})
	}
}

func TestBuildArgsJavaFromPath(t *testing.T) {
	t.Parallel()
	plan, err := BuildArgs(ArgsConfig{
		Jar:            "scanner.jar",
		ServerURL:      "http://localhost:9000",
		DefaultWorkDir: "work",
	}, nil)
	require.NoError(t, err)
	require.Equal(t, "java", plan.Invocation.Path)
	require.True(t, plan.Anonymous)
	require.Equal(t, "http://localhost:9000", plan.ServerURL)
}
