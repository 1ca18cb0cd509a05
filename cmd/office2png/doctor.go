package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/mem"

	office2png "github.com/alnah/go-office2png"
	"github.com/alnah/go-office2png/internal/fileutil"
)

// sofficeMemoryEstimate is the typical resident size of one headless soffice.
const sofficeMemoryEstimate = 300 << 20

// sampleDPI renders the one-inch sample page at 72x72 pixels.
const sampleDPI = 72

// versionTimeout bounds `soffice --version`; a first run may create a profile.
const versionTimeout = 30 * time.Second

// doctorResult holds all diagnostic information.
type doctorResult struct {
	Status     string         `json:"status"` // "ready", "warnings", "errors"
	Soffice    sofficeInfo    `json:"soffice"`
	Rasterizer rasterizerInfo `json:"rasterizer"`
	Env        envInfo        `json:"environment"`
	System     systemInfo     `json:"system"`
	Warnings   []string       `json:"warnings,omitempty"`
	Errors     []string       `json:"errors,omitempty"`
}

// sofficeInfo holds LibreOffice detection results.
type sofficeInfo struct {
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
}

// rasterizerInfo holds the MuPDF self-test result.
type rasterizerInfo struct {
	OK     bool   `json:"ok"`
	Sample string `json:"sample,omitempty"` // rendered sample size, e.g. "72x72"
}

// envInfo holds environment detection results.
type envInfo struct {
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	Container     bool   `json:"container"`
	ContainerHint string `json:"container_hint,omitempty"`
	CI            bool   `json:"ci"`
	SofficeEnv    string `json:"office2png_soffice"`
}

// systemInfo holds system check results.
type systemInfo struct {
	TempDir         string `json:"temp_dir"`
	TempWritable    bool   `json:"temp_writable"`
	CPUs            int    `json:"cpus"`
	DefaultPoolSize int    `json:"default_pool_size"`
	MemoryAvailable uint64 `json:"memory_available_bytes,omitempty"`
}

// runDoctorCmd executes the doctor command and returns an exit code.
// Exit codes: 0 = OK (including warnings), 1 = errors found.
func runDoctorCmd(ctx context.Context, args []string, env *Environment) int {
	jsonOutput := hasFlag(args, "--json")

	result := runDoctor(ctx)

	if jsonOutput {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(env.Stdout, result)
	}

	if result.Status == "errors" {
		return ExitGeneral
	}
	return ExitSuccess
}

// runDoctor performs all diagnostic checks.
func runDoctor(ctx context.Context) *doctorResult {
	result := &doctorResult{
		Status: "ready",
		Env: envInfo{
			OS:         runtime.GOOS,
			Arch:       runtime.GOARCH,
			SofficeEnv: os.Getenv("OFFICE2PNG_SOFFICE"),
		},
	}

	checkSoffice(ctx, result)
	checkRasterizer(result)
	checkEnvironment(result)
	checkSystem(result)

	// Determine final status
	if len(result.Errors) > 0 {
		result.Status = "errors"
	} else if len(result.Warnings) > 0 {
		result.Status = "warnings"
	}

	return result
}

// checkSoffice locates LibreOffice and asks it for its version.
func checkSoffice(ctx context.Context, result *doctorResult) {
	path, err := office2png.ToolchainPath()
	if err != nil {
		result.Errors = append(result.Errors,
			"LibreOffice not found. Install it or set OFFICE2PNG_SOFFICE")
		return
	}

	result.Soffice.Found = true
	result.Soffice.Path = path

	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, path, "--headless", "--version").Output() // #nosec G204 -- binary resolved by LookupSoffice
	if err != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Could not get LibreOffice version: %v", err))
		return
	}
	result.Soffice.Version = strings.TrimSpace(string(out))
}

// checkRasterizer renders a built-in page through MuPDF.
func checkRasterizer(result *doctorResult) {
	size, err := office2png.CheckRasterizer(sampleDPI)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("MuPDF rasterizer unusable: %v", err))
		return
	}
	result.Rasterizer.OK = true
	result.Rasterizer.Sample = fmt.Sprintf("%dx%d", size.X, size.Y)
}

// checkEnvironment detects container and CI environments.
func checkEnvironment(result *doctorResult) {
	// Detect container (multi-signal approach)
	result.Env.Container, result.Env.ContainerHint = isContainer()

	// Detect CI environments
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"}
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			result.Env.CI = true
			break
		}
	}
}

// isContainer detects if running in a container environment.
// Returns (isContainer, hint) where hint indicates which signal was detected.
func isContainer() (bool, string) {
	// Explicit override (highest priority)
	if os.Getenv("OFFICE2PNG_CONTAINER") == "1" {
		return true, "OFFICE2PNG_CONTAINER=1"
	}
	// Docker
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true, "/.dockerenv"
	}
	// Podman / systemd-nspawn / general container indicator
	if v := os.Getenv("container"); v != "" {
		return true, "container=" + v
	}
	// Kubernetes
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true, "KUBERNETES_SERVICE_HOST"
	}
	return false, ""
}

// checkSystem verifies the temp directory and sizes the default pool
// against available memory.
func checkSystem(result *doctorResult) {
	tmpDir := os.TempDir()
	result.System.TempDir = tmpDir
	if err := fileutil.DirWritable(tmpDir); err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Temp directory not writable: %s", tmpDir))
	} else {
		result.System.TempWritable = true
	}

	result.System.CPUs = runtime.GOMAXPROCS(0)
	result.System.DefaultPoolSize = office2png.ResolvePoolSize(0)

	vm, err := mem.VirtualMemory()
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("Could not read memory usage: %v", err))
		return
	}
	result.System.MemoryAvailable = vm.Available

	need := uint64(result.System.DefaultPoolSize) * sofficeMemoryEstimate // #nosec G115 -- pool size is positive
	if vm.Available < need {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s available for %d converters (about %s needed); lower --workers",
				humanize.IBytes(vm.Available), result.System.DefaultPoolSize, humanize.IBytes(need)))
	}
}

// printDoctorResult outputs human-readable diagnostic results.
func printDoctorResult(w io.Writer, r *doctorResult) {
	fmt.Fprintln(w, "office2png doctor")
	fmt.Fprintln(w)

	// LibreOffice section
	fmt.Fprintln(w, "LibreOffice")
	if r.Soffice.Found {
		fmt.Fprintf(w, "  [OK] Found at %s\n", r.Soffice.Path)
		if r.Soffice.Version != "" {
			fmt.Fprintf(w, "  [OK] Version: %s\n", r.Soffice.Version)
		}
	} else {
		fmt.Fprintln(w, "  [ERROR] Not found")
	}
	fmt.Fprintln(w)

	// Rasterizer section
	fmt.Fprintln(w, "Rasterizer")
	if r.Rasterizer.OK {
		fmt.Fprintf(w, "  [OK] MuPDF: rendered sample page (%s)\n", r.Rasterizer.Sample)
	} else {
		fmt.Fprintln(w, "  [ERROR] MuPDF: sample page failed")
	}
	fmt.Fprintln(w)

	// Environment section
	fmt.Fprintln(w, "Environment")
	fmt.Fprintf(w, "  [OK] Platform: %s/%s\n", r.Env.OS, r.Env.Arch)
	if r.Env.Container {
		fmt.Fprintf(w, "  [OK] Container: detected (%s)\n", r.Env.ContainerHint)
	}
	if r.Env.CI {
		fmt.Fprintln(w, "  [OK] CI: detected")
	}
	fmt.Fprintln(w)

	// System section
	fmt.Fprintln(w, "System")
	if r.System.TempWritable {
		fmt.Fprintf(w, "  [OK] Temp directory: %s (writable)\n", r.System.TempDir)
	} else {
		fmt.Fprintf(w, "  [ERROR] Temp directory: %s (not writable)\n", r.System.TempDir)
	}
	fmt.Fprintf(w, "  [OK] CPUs: %d (default pool size %d)\n", r.System.CPUs, r.System.DefaultPoolSize)
	if r.System.MemoryAvailable > 0 {
		fmt.Fprintf(w, "  [OK] Memory available: %s\n", humanize.IBytes(r.System.MemoryAvailable))
	}
	fmt.Fprintln(w)

	// Warnings
	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "  [WARN] %s\n", warn)
		}
		fmt.Fprintln(w)
	}

	// Errors
	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, err := range r.Errors {
			fmt.Fprintf(w, "  [ERROR] %s\n", err)
		}
		fmt.Fprintln(w)
	}

	// Final status
	switch r.Status {
	case "ready":
		fmt.Fprintln(w, "Status: Ready to convert")
	case "warnings":
		fmt.Fprintln(w, "Status: Ready with warnings")
	case "errors":
		fmt.Fprintln(w, "Status: Not ready (see errors above)")
	}
}
