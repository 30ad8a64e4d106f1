package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/mediapruner/queue/internal/queue"
)

// FFProbe implements queue.MediaProbe by shelling out to the ffprobe
// binary and parsing its JSON stream report.
type FFProbe struct {
	binaryPath string
}

// NewFFProbe creates a probe that invokes the given ffprobe binary
// ("ffprobe" if path is empty, resolved via PATH).
func NewFFProbe(binaryPath string) *FFProbe {
	if binaryPath == "" {
		binaryPath = "ffprobe"
	}
	return &FFProbe{binaryPath: binaryPath}
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  struct {
		FormatName string `json:"format_name"`
	} `json:"format"`
}

type ffprobeStream struct {
	CodecType      string `json:"codec_type"`
	CodecName      string `json:"codec_name"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Tags           struct {
		Language string `json:"language"`
	} `json:"tags"`
}

// Probe runs ffprobe against filePath and extracts codec, resolution,
// audio codec, container, and subtitle track languages.
func (p *FFProbe) Probe(ctx context.Context, filePath string) (queue.ProbeResult, error) {
	cmd := exec.CommandContext(ctx, p.binaryPath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	)

	out, err := cmd.Output()
	if err != nil {
		return queue.ProbeResult{}, fmt.Errorf("ffprobe: %w", err)
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return queue.ProbeResult{}, fmt.Errorf("ffprobe: parse output: %w", err)
	}

	result := queue.ProbeResult{Container: parsed.Format.FormatName}
	for _, s := range parsed.Streams {
		switch s.CodecType {
		case "video":
			if result.Codec == "" {
				result.Codec = s.CodecName
				result.Width = s.Width
				result.Height = s.Height
				if s.Width > 0 && s.Height > 0 {
					result.Resolution = strconv.Itoa(s.Width) + "x" + strconv.Itoa(s.Height)
				}
			}
		case "audio":
			if result.AudioCodec == "" {
				result.AudioCodec = s.CodecName
			}
		case "subtitle":
			lang := s.Tags.Language
			if lang == "" {
				lang = "und"
			}
			result.Subtitles = append(result.Subtitles, lang)
		}
	}

	return result, nil
}
