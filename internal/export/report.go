package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/obscura/obscura-agent/internal/region"
	"github.com/obscura/obscura-agent/internal/video"
)

const outputSuffix = "_blurred"

// OutputPath builds the export destination inside dir from the source
// filename, sanitized and suffixed so the original is never overwritten.
func OutputPath(dir, sourceFilename string) string {
	base := strings.TrimSuffix(sourceFilename, filepath.Ext(sourceFilename))
	name := SanitizeName(base, 80)
	if name == "" {
		name = "export"
	}
	return filepath.Join(dir, name+outputSuffix+".mp4")
}

// ReportPath is the sidecar location for an exported file.
func ReportPath(outputPath string) string {
	return outputPath + ".report.json"
}

// BuildReport assembles the audit record for a finished run.
func BuildReport(sourcePath, outputPath string, props video.Properties, framesWritten int, cancelled bool, regions []*region.Region) *Report {
	rep := &Report{
		SourcePath:    sourcePath,
		OutputPath:    outputPath,
		Width:         props.Width,
		Height:        props.Height,
		FPS:           props.FPS,
		TotalFrames:   props.TotalFrames,
		FramesWritten: framesWritten,
		Cancelled:     cancelled,
		CreatedAt:     time.Now().UTC(),
	}
	for _, r := range regions {
		rep.Regions = append(rep.Regions, ReportRegion{
			ID:            r.ID,
			Origin:        string(r.Origin),
			X:             r.Bounds.X,
			Y:             r.Bounds.Y,
			W:             r.Bounds.W,
			H:             r.Bounds.H,
			ActiveFrom:    r.ActiveFrom,
			ActiveTo:      r.ActiveTo,
			BlurStrength:  r.BlurStrength,
			TrackedFrames: len(r.TrackedPositions),
		})
	}
	return rep
}

// WriteReport writes the sidecar next to the export output.
func WriteReport(rep *Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal export report: %w", err)
	}
	path := ReportPath(rep.OutputPath)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write export report %s: %w", path, err)
	}
	return nil
}
