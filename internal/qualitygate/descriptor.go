package qualitygate

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// DescriptorFile is written by the scanner into its working directory once
// the analysis report has been submitted.
const DescriptorFile = "report-task.txt"

const (
	keyCeTaskURL  = "ceTaskUrl="
	keyServerURL  = "serverUrl="
	keyProjectKey = "projectKey="
)

// Descriptor holds the entries of report-task.txt the poller needs.
type Descriptor struct {
	CeTaskURL  string
	ServerURL  string
	ProjectKey string
}

// ReadDescriptor parses <workDir>/report-task.txt. Lines are matched by
// prefix, the first matching line for a key wins and scanning stops as soon as
// all three keys are known.
func ReadDescriptor(workDir string) (Descriptor, error) {
	path := filepath.Join(workDir, DescriptorFile)
	f, err := os.Open(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to read report descriptor: %w", err)
	}
	defer f.Close()

	var d Descriptor
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		switch {
		case d.CeTaskURL == "" && strings.HasPrefix(line, keyCeTaskURL):
			d.CeTaskURL = strings.TrimPrefix(line, keyCeTaskURL)
		case d.ServerURL == "" && strings.HasPrefix(line, keyServerURL):
			d.ServerURL = strings.TrimPrefix(line, keyServerURL)
		case d.ProjectKey == "" && strings.HasPrefix(line, keyProjectKey):
			d.ProjectKey = strings.TrimPrefix(line, keyProjectKey)
		}
		if d.complete() {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return Descriptor{}, fmt.Errorf("failed to read report descriptor %s: %w", path, err)
	}

	return d, nil
}

func (d Descriptor) complete() bool {
	return d.CeTaskURL != "" && d.ServerURL != "" && d.ProjectKey != ""
}

// QualityGateURL returns the project_status endpoint for the finished task.
// The analysis id is preferred, the task id is used when the server did not
// report one.
func (d Descriptor) QualityGateURL(task Task) (string, error) {
	if d.ServerURL == "" || d.ProjectKey == "" {
		return "", ErrQualityGateURLMissing
	}
	id := task.AnalysisID
	if id == "" {
		id = task.ID
	}
	return d.ServerURL + "/api/qualitygates/project_status?analysisId=" + url.QueryEscape(id), nil
}
