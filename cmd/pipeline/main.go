// cmd/pipeline/main.go
//
// Command-line utilities for running individual pipeline steps outside the
// queue: script generation, review scoring, speech synthesis, prompt export,
// cover rendering, and final assembly. Useful for debugging a single stage
// against local model servers without a database or Redis.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"video-essay-service/internal/artifact"
	"video-essay-service/internal/generator"
	"video-essay-service/internal/pipeline"
)

const usage = `usage: pipeline <command> [flags]

commands:
  generate-script  -topic T -style S -length N [-context text | -context-file path] [-o script.txt] [-t transcript.txt]
  review-script    [-o review_score.txt] [script.txt]
  tts              -job ID [-voice V] [-o audio.wav] [transcript.txt]
  prompts          [-o prompts.json] [script.txt]
  render-frames    -job ID [-o image.png] [prompts.json]
  assemble         -job ID [-o final.mp4] [image.png] [audio.wav]
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "generate-script":
		err = runGenerateScript(ctx, os.Args[2:])
	case "review-script":
		err = runReviewScript(ctx, os.Args[2:])
	case "tts":
		err = runTTS(ctx, os.Args[2:])
	case "prompts":
		err = runPrompts(os.Args[2:])
	case "render-frames":
		err = runRenderFrames(ctx, os.Args[2:])
	case "assemble":
		err = runAssemble(ctx, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func runGenerateScript(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generate-script", flag.ExitOnError)
	topic := fs.String("topic", "", "topic of the video essay")
	style := fs.String("style", "", "narration style")
	length := fs.Int("length", 0, "target length in seconds")
	output := fs.String("o", "script.txt", "script output path")
	transcriptOut := fs.String("t", "transcript.txt", "transcript output path")
	contextText := fs.String("context", "", "inline context text")
	contextFile := fs.String("context-file", "", "path to a file containing context text")
	fs.Parse(args)

	if *topic == "" || *style == "" || *length <= 0 {
		return fmt.Errorf("-topic, -style and -length are required")
	}

	research := *contextText
	if *contextFile != "" {
		b, err := os.ReadFile(*contextFile)
		if err != nil {
			return fmt.Errorf("read context file: %w", err)
		}
		research = string(b)
	}

	narrator := newNarrator()
	script, err := narrator.WriteScript(ctx, *topic, *style, *length, research)
	if err != nil {
		return err
	}
	transcript, err := narrator.WriteTranscript(ctx, script)
	if err != nil {
		return err
	}

	if err := os.WriteFile(*output, []byte(script), 0o644); err != nil {
		return fmt.Errorf("write script: %w", err)
	}
	if err := os.WriteFile(*transcriptOut, []byte(transcript), 0o644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	fmt.Printf("Wrote script to %s\n", *output)
	fmt.Printf("Wrote transcript to %s\n", *transcriptOut)
	return nil
}

func runReviewScript(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("review-script", flag.ExitOnError)
	output := fs.String("o", "review_score.txt", "score output path")
	fs.Parse(args)

	script, err := os.ReadFile(argOr(fs, 0, "script.txt"))
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}

	score, err := newNarrator().Review(ctx, string(script))
	if err != nil {
		return err
	}
	if err := os.WriteFile(*output, []byte(strconv.FormatFloat(score, 'f', -1, 64)), 0o644); err != nil {
		return fmt.Errorf("write score: %w", err)
	}
	fmt.Printf("Review score: %g\n", score)
	return nil
}

func runTTS(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tts", flag.ExitOnError)
	jobID := fs.String("job", "", "job id used for the scratch directory")
	voice := fs.String("voice", "", "voice override")
	output := fs.String("o", "audio.wav", "audio output path")
	fs.Parse(args)

	if *jobID == "" {
		return fmt.Errorf("-job is required")
	}

	text, err := os.ReadFile(argOr(fs, 0, "transcript.txt"))
	if err != nil {
		return fmt.Errorf("read narration text: %w", err)
	}

	store, err := newStore()
	if err != nil {
		return err
	}

	produced, err := newVoicer(store).Synthesize(ctx, *jobID, string(text), *voice)
	if err != nil {
		return err
	}
	if err := copyFile(produced, *output); err != nil {
		return err
	}
	fmt.Printf("Generated audio at %s\n", *output)
	return nil
}

func runPrompts(args []string) error {
	fs := flag.NewFlagSet("prompts", flag.ExitOnError)
	output := fs.String("o", "prompts.json", "prompts output path")
	fs.Parse(args)

	script, err := os.ReadFile(argOr(fs, 0, "script.txt"))
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}

	prompts := pipeline.DefaultImagePrompts(string(script))
	b, err := json.MarshalIndent(prompts, "", "  ")
	if err != nil {
		return fmt.Errorf("encode prompts: %w", err)
	}
	if err := os.WriteFile(*output, b, 0o644); err != nil {
		return fmt.Errorf("write prompts: %w", err)
	}
	fmt.Printf("Prompts saved to %s\n", *output)
	return nil
}

func runRenderFrames(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("render-frames", flag.ExitOnError)
	jobID := fs.String("job", "", "job id used for the scratch directory")
	output := fs.String("o", "image.png", "cover output path")
	fs.Parse(args)

	if *jobID == "" {
		return fmt.Errorf("-job is required")
	}

	raw, err := os.ReadFile(argOr(fs, 0, "prompts.json"))
	if err != nil {
		return fmt.Errorf("read prompts: %w", err)
	}
	parts := promptParts(raw)

	store, err := newStore()
	if err != nil {
		return err
	}

	produced, err := newIllustrator(store).RenderCover(ctx, *jobID, parts)
	if err != nil {
		return err
	}
	if err := copyFile(produced, *output); err != nil {
		return err
	}
	fmt.Printf("Cover image stored at %s\n", *output)
	return nil
}

func runAssemble(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("assemble", flag.ExitOnError)
	jobID := fs.String("job", "", "job id used for the scratch directory")
	output := fs.String("o", "final.mp4", "video output path")
	fs.Parse(args)

	if *jobID == "" {
		return fmt.Errorf("-job is required")
	}

	imagePath := argOr(fs, 0, "image.png")
	audioPath := argOr(fs, 1, "audio.wav")

	store, err := newStore()
	if err != nil {
		return err
	}

	muxer := generator.NewFFmpegMuxer(getEnv("FFMPEG_BIN", "ffmpeg"), store)
	produced, err := muxer.AssembleStatic(ctx, *jobID, imagePath, audioPath)
	if err != nil {
		return err
	}
	if err := copyFile(produced, *output); err != nil {
		return err
	}
	fmt.Printf("Video assembled at %s\n", *output)
	return nil
}

// promptParts accepts either the scene map exported by the prompts command or
// a flat list of fragments.
func promptParts(raw []byte) []string {
	var scenes map[string][]string
	if err := json.Unmarshal(raw, &scenes); err == nil && len(scenes) > 0 {
		return pipeline.FirstSceneParts(scenes)
	}
	var flat []string
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat
	}
	return []string{""}
}

// Provider construction mirrors cmd/worker but reads only the generator env.

func newNarrator() *generator.OpenAINarrator {
	return generator.NewOpenAINarrator(
		getEnv("LLM_BASE_URL", "http://localhost:1234/v1"),
		getEnv("LLM_API_KEY", "not-needed"),
		getEnv("LLM_MODEL_NAME", "openai/gpt-oss-20b"),
		getEnvAsFloat("LLM_TEMPERATURE", 0.7),
		getEnvAsFloat("LLM_TOP_P", 0.9),
	)
}

func newVoicer(store *artifact.Store) generator.Voicer {
	espeak := generator.NewEspeakVoicer(getEnv("ESPEAK_BIN", "espeak-ng"), store)
	tts := getEnv("TTS_SERVER_URL", "")
	if tts == "" {
		return espeak
	}
	primary := generator.NewHTTPVoicer(tts, getEnv("TTS_VOICE", "Nova"), getEnvAsFloat("TTS_SPEED", 1.0), store)
	return generator.NewVoicerChain(primary, espeak)
}

func newIllustrator(store *artifact.Store) generator.Illustrator {
	placeholder := generator.NewPlaceholderIllustrator(store)
	diffusion := getEnv("DIFFUSION_URL", "")
	if diffusion == "" {
		return placeholder
	}
	d := generator.NewDiffusionIllustrator(diffusion, store)
	d.Fallback = placeholder
	return d
}

func newStore() (*artifact.Store, error) {
	return artifact.NewStore(getEnv("ARTIFACTS_ROOT", "data/jobs"))
}

func argOr(fs *flag.FlagSet, i int, def string) string {
	if fs.NArg() > i {
		return fs.Arg(i)
	}
	return def
}

func copyFile(src, dst string) error {
	if src == dst {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	return out.Close()
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
