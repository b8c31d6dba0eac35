package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"clipforge/internal/services"
)

// FFmpeg shells out to ffmpeg/ffprobe, the engine used in production. All
// invocations run under the caller's context so stage timeouts apply.
type FFmpeg struct {
	Binary      string
	ProbeBinary string
}

// NewFFmpeg constructs the exec-backed engine. Empty paths fall back to the
// binaries on PATH.
func NewFFmpeg(binary, probeBinary string) *FFmpeg {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	if strings.TrimSpace(probeBinary) == "" {
		probeBinary = "ffprobe"
	}
	return &FFmpeg{Binary: binary, ProbeBinary: probeBinary}
}

type probeStream struct {
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
}

type probeFormat struct {
	Duration string            `json:"duration"`
	Size     string            `json:"size"`
	Tags     map[string]string `json:"tags"`
}

type probeResult struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

// Probe inspects a local media file and builds its descriptor.
func (f *FFmpeg) Probe(ctx context.Context, path string) (Descriptor, error) {
	cmd := exec.CommandContext(ctx, f.ProbeBinary,
		"-v", "error", "-hide_banner",
		"-show_format", "-show_streams", "-of", "json",
		"--", path,
	)
	output, err := cmd.Output()
	if err != nil {
		return Descriptor{}, services.Wrap(services.ErrExternalTool, "probe", "ffprobe", commandFailure(err), err)
	}

	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return Descriptor{}, services.Wrap(services.ErrExternalTool, "probe", "parse ffprobe output", "", err)
	}

	desc := Descriptor{
		DurationSeconds: parseFloat(result.Format.Duration),
		SizeBytes:       int64(parseFloat(result.Format.Size)),
		Title:           result.Format.Tags["title"],
		Description:     result.Format.Tags["comment"],
	}
	for _, stream := range result.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			desc.Width = stream.Width
			desc.Height = stream.Height
			desc.Codec = stream.CodecName
			desc.FrameRate = parseFrameRate(stream.AvgFrameRate)
			break
		}
	}
	if keywords := result.Format.Tags["keywords"]; keywords != "" {
		for _, kw := range strings.Split(keywords, ",") {
			if kw = strings.TrimSpace(kw); kw != "" {
				desc.Keywords = append(desc.Keywords, kw)
			}
		}
	}
	return desc, nil
}

// SceneCuts returns timestamps where ffmpeg's scene-change score exceeds the
// threshold.
func (f *FFmpeg) SceneCuts(ctx context.Context, input string, threshold float64) ([]float64, error) {
	filter := fmt.Sprintf("select='gt(scene,%s)',showinfo", formatFloat(threshold))
	cmd := exec.CommandContext(ctx, f.Binary,
		"-hide_banner", "-nostats",
		"-i", input,
		"-vf", filter,
		"-f", "null", "-",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "analysis", "scene detection", commandFailure(err), err)
	}
	return ParseShowinfoTimes(stderr.String()), nil
}

// SilenceWindows returns (start, end) pairs of silent audio spans.
func (f *FFmpeg) SilenceWindows(ctx context.Context, input string, noiseDB, minSeconds float64) ([][2]float64, error) {
	filter := fmt.Sprintf("silencedetect=noise=%sdB:d=%s", formatFloat(noiseDB), formatFloat(minSeconds))
	cmd := exec.CommandContext(ctx, f.Binary,
		"-hide_banner", "-nostats",
		"-i", input,
		"-af", filter,
		"-f", "null", "-",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "analysis", "silence detection", commandFailure(err), err)
	}
	return ParseSilenceWindows(stderr.String()), nil
}

// ClipStats measures motion and audio level over a clip of the input.
func (f *FFmpeg) ClipStats(ctx context.Context, input string, start, end float64) (ClipStats, error) {
	cmd := exec.CommandContext(ctx, f.Binary,
		"-hide_banner", "-nostats",
		"-ss", formatFloat(start), "-to", formatFloat(end),
		"-i", input,
		"-vf", "signalstats,metadata=mode=print",
		"-af", "astats=metadata=1:reset=0,ametadata=mode=print",
		"-f", "null", "-",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return ClipStats{}, services.Wrap(services.ErrExternalTool, "analysis", "clip statistics", commandFailure(err), err)
	}
	return ParseClipStats(stderr.String()), nil
}

// Render trims, crops, scales, and concatenates the clips into Output using
// pinned encoder settings so identical specs produce identical bytes.
func (f *FFmpeg) Render(ctx context.Context, spec RenderSpec) error {
	if len(spec.Clips) == 0 {
		return services.Wrap(services.ErrValidation, "adaptation", "render", "render spec has no clips", nil)
	}

	var graph strings.Builder
	labels := make([]string, 0, len(spec.Clips))
	for i, clip := range spec.Clips {
		videoLabel := fmt.Sprintf("v%d", i)
		audioLabel := fmt.Sprintf("a%d", i)
		fmt.Fprintf(&graph,
			"[0:v]trim=start=%s:end=%s,setpts=PTS-STARTPTS,crop=%d:%d:%d:%d,scale=%d:%d",
			formatFloat(clip.StartSeconds), formatFloat(clip.EndSeconds),
			clip.Crop.Width, clip.Crop.Height, clip.Crop.X, clip.Crop.Y,
			spec.Width, spec.Height,
		)
		if clip.FadeSeconds > 0 {
			fmt.Fprintf(&graph, ",fade=t=in:st=0:d=%s", formatFloat(clip.FadeSeconds))
		}
		fmt.Fprintf(&graph, "[%s];", videoLabel)
		fmt.Fprintf(&graph,
			"[0:a]atrim=start=%s:end=%s,asetpts=PTS-STARTPTS[%s];",
			formatFloat(clip.StartSeconds), formatFloat(clip.EndSeconds), audioLabel,
		)
		labels = append(labels, "["+videoLabel+"]["+audioLabel+"]")
	}
	fmt.Fprintf(&graph, "%sconcat=n=%d:v=1:a=1[vout][aout]", strings.Join(labels, ""), len(spec.Clips))

	cmd := exec.CommandContext(ctx, f.Binary,
		"-hide_banner", "-nostats", "-y",
		"-i", spec.Input,
		"-filter_complex", graph.String(),
		"-map", "[vout]", "-map", "[aout]",
		"-c:v", "libx264", "-crf", strconv.Itoa(spec.CRF), "-preset", spec.Preset,
		"-c:a", "aac", "-b:a", "128k",
		// Deterministic output: fixed encoder threads and no wall-clock
		// metadata so identical specs yield identical bytes.
		"-x264-params", "threads=1",
		"-map_metadata", "-1",
		"-fflags", "+bitexact", "-flags:v", "+bitexact", "-flags:a", "+bitexact",
		spec.Output,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return services.Wrap(services.ErrExternalTool, "adaptation", "ffmpeg render", commandFailure(err)+": "+tail(stderr.String(), 400), err)
	}
	return nil
}

// ExtractFrame writes the frame nearest atSeconds as a PNG image.
func (f *FFmpeg) ExtractFrame(ctx context.Context, input string, atSeconds float64, output string) error {
	cmd := exec.CommandContext(ctx, f.Binary,
		"-hide_banner", "-nostats", "-y",
		"-ss", formatFloat(atSeconds),
		"-i", input,
		"-frames:v", "1",
		output,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return services.Wrap(services.ErrExternalTool, "optimization", "extract thumbnail frame", commandFailure(err), err)
	}
	return nil
}

// ParseShowinfoTimes extracts pts_time values from showinfo filter output.
func ParseShowinfoTimes(logOutput string) []float64 {
	var times []float64
	for _, line := range strings.Split(logOutput, "\n") {
		idx := strings.Index(line, "pts_time:")
		if idx < 0 {
			continue
		}
		rest := line[idx+len("pts_time:"):]
		if end := strings.IndexAny(rest, " \t"); end >= 0 {
			rest = rest[:end]
		}
		if ts, err := strconv.ParseFloat(strings.TrimSpace(rest), 64); err == nil {
			times = append(times, ts)
		}
	}
	sort.Float64s(times)
	return times
}

// ParseSilenceWindows extracts (start, end) pairs from silencedetect output.
// A trailing silence_start without a matching end is dropped.
func ParseSilenceWindows(logOutput string) [][2]float64 {
	var windows [][2]float64
	var pendingStart *float64
	for _, line := range strings.Split(logOutput, "\n") {
		if value, ok := parseTaggedFloat(line, "silence_start:"); ok {
			v := value
			pendingStart = &v
			continue
		}
		if value, ok := parseTaggedFloat(line, "silence_end:"); ok && pendingStart != nil {
			windows = append(windows, [2]float64{*pendingStart, value})
			pendingStart = nil
		}
	}
	return windows
}

// ParseClipStats aggregates signalstats and astats metadata lines.
func ParseClipStats(logOutput string) ClipStats {
	var stats ClipStats
	var ydifSum float64
	var rms float64
	var rmsSeen bool
	for _, line := range strings.Split(logOutput, "\n") {
		if value, ok := parseTaggedFloat(line, "lavfi.signalstats.YDIF="); ok {
			ydifSum += value
			stats.FrameSamples++
			continue
		}
		if value, ok := parseTaggedFloat(line, "lavfi.astats.Overall.RMS_level="); ok {
			rms = value
			rmsSeen = true
		}
	}
	if stats.FrameSamples > 0 {
		stats.MotionLevel = ydifSum / float64(stats.FrameSamples)
	}
	if rmsSeen {
		stats.RMSLevelDB = rms
	} else {
		stats.RMSLevelDB = -96
	}
	return stats
}

func parseTaggedFloat(line, tag string) (float64, bool) {
	idx := strings.Index(line, tag)
	if idx < 0 {
		return 0, false
	}
	rest := strings.TrimSpace(line[idx+len(tag):])
	if end := strings.IndexAny(rest, " \t|"); end >= 0 {
		rest = rest[:end]
	}
	value, err := strconv.ParseFloat(rest, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func parseFloat(value string) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return parsed
}

func parseFrameRate(value string) float64 {
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return parseFloat(value)
	}
	num := parseFloat(parts[0])
	den := parseFloat(parts[1])
	if den == 0 {
		return 0
	}
	return num / den
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func commandFailure(err error) string {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return fmt.Sprintf("exit status %d", exitErr.ExitCode())
	}
	return "command failed"
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
