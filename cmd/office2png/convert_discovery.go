package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	office2png "github.com/alnah/go-office2png"
	"github.com/alnah/go-office2png/internal/hints"
)

// batchPlan is one ConvertBatch call: every input shares outputDir.
type batchPlan struct {
	outputDir string
	inputs    []string
}

// discoverInputs expands args into document paths. Files must carry a
// supported extension; directories contribute their supported files, not
// recursively, in name order. Duplicates are dropped.
func discoverInputs(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var inputs []string
	add := func(path string) {
		key := filepath.Clean(path)
		if !seen[key] {
			seen[key] = true
			inputs = append(inputs, path)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", office2png.ErrInputNotFound, arg)
		}

		if !info.IsDir() {
			if !office2png.IsSupportedExtension(filepath.Ext(arg)) {
				return nil, fmt.Errorf("%w: %s%s", office2png.ErrUnsupportedExtension, arg,
					hints.ForUnsupportedExtension(office2png.SupportedExtensions()))
			}
			add(arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", arg, err)
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || isSkippedName(name) || !office2png.IsSupportedExtension(filepath.Ext(name)) {
				continue
			}
			add(filepath.Join(arg, name))
		}
	}

	return inputs, nil
}

// isSkippedName matches hidden files and office lock files
// (~$report.docx from Word, .~lock.report.docx# from LibreOffice).
func isSkippedName(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$")
}

// planBatches groups inputs by output directory, preserving input order.
// Without an explicit outputDir, pages are written next to each input.
func planBatches(inputs []string, outputDir string) []batchPlan {
	if outputDir != "" {
		return []batchPlan{{outputDir: outputDir, inputs: inputs}}
	}

	var plans []batchPlan
	index := make(map[string]int)
	for _, in := range inputs {
		dir := filepath.Dir(in)
		i, ok := index[dir]
		if !ok {
			i = len(plans)
			index[dir] = i
			plans = append(plans, batchPlan{outputDir: dir})
		}
		plans[i].inputs = append(plans[i].inputs, in)
	}
	return plans
}
