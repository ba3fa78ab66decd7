package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	blurdetector "github.com/vudang/BlurDetector"
	"github.com/vudang/BlurDetector/internal/config"
	"github.com/vudang/BlurDetector/internal/utils"
	"github.com/vudang/BlurDetector/pkg/classifier"
	"github.com/vudang/BlurDetector/pkg/imageio"
	"github.com/vudang/BlurDetector/pkg/llamacpp"
	"github.com/vudang/BlurDetector/pkg/ollama"
	"github.com/vudang/BlurDetector/pkg/sampler"
	"github.com/vudang/BlurDetector/pkg/types"
)

// report is the JSON document written for one evaluated image.
type report struct {
	Source      string        `json:"source"`
	Probability float64       `json:"probability"`
	Patches     []patchReport `json:"patches"`
}

type patchReport struct {
	Label      string          `json:"label"`
	Confidence float64         `json:"confidence"`
	Rect       image.Rectangle `json:"rect"`
}

func main() {
	var in, cfgPath, backend, model, url, mode, patchDir, reportPath string
	var patches int
	var mask float64
	var seed int64
	var verbose bool

	flag.StringVar(&in, "in", "", "input image path, URL, or directory of images")
	flag.StringVar(&cfgPath, "config", "", "config file path (JSON)")
	flag.StringVar(&backend, "backend", "", "inference backend: ollama or llamacpp")
	flag.StringVar(&model, "model", "", "vision model name")
	flag.StringVar(&url, "url", "", "inference server URL")
	flag.IntVar(&patches, "patches", 0, "number of patches to sample")
	flag.StringVar(&mode, "mode", "", "sampling mode: random or uniform")
	flag.Float64Var(&mask, "mask", 0, "mask factor in (0,1]; centered fractional crop eligible for sampling")
	flag.Int64Var(&seed, "seed", 0, "random sampling seed (0 = from clock)")
	flag.StringVar(&patchDir, "patch-dir", "", "directory for per-patch crop dumps (optional)")
	flag.StringVar(&reportPath, "report", "", "JSON report output path (optional)")
	flag.BoolVar(&verbose, "v", false, "enable debug logging")
	flag.Parse()

	if in == "" {
		log.Fatalf("usage: %s -in input.jpg|URL|dir [-backend ollama|llamacpp] [-model name] [-patches 50] [-mode random|uniform] [-mask 0.7]", filepath.Base(os.Args[0]))
	}

	cfg := loadConfig(cfgPath)

	// Flags override config file values.
	if backend != "" {
		cfg.Classifier.Backend = backend
	}
	if model != "" {
		cfg.Classifier.Model = model
	}
	if url != "" {
		cfg.Classifier.URL = url
	}
	if patches > 0 {
		cfg.Evaluator.PatchCount = patches
	}
	if mode != "" {
		cfg.Evaluator.Mode = mode
	}
	if mask > 0 {
		cfg.Evaluator.MaskFactor = mask
	}
	if patchDir != "" {
		cfg.Output.PatchDir = patchDir
	}
	if reportPath != "" {
		cfg.Output.ReportPath = reportPath
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	bc, err := newClassifier(cfg)
	if err != nil {
		log.Fatalf("failed to create %s classifier: %v", cfg.Classifier.Backend, err)
	}

	detector := blurdetector.NewWithConfig(bc, blurdetector.Config{
		PatchCount: cfg.Evaluator.PatchCount,
		PatchSize:  cfg.Evaluator.PatchSize,
		MaskFactor: cfg.Evaluator.MaskFactor,
		Mode:       sampler.Mode(cfg.Evaluator.Mode),
		Seed:       seed,
		Workers:    cfg.Evaluator.Workers,
		Logger:     logger,
	})

	sources := resolveSources(in)
	reports := make([]report, 0, len(sources))
	for _, src := range sources {
		rep, err := evaluateOne(detector, cfg, src)
		if err != nil {
			log.Fatalf("%s: %v", src, err)
		}
		fmt.Printf("%s\tblur probability %.3f (%d patches)\n", src, rep.Probability, len(rep.Patches))
		reports = append(reports, rep)
	}

	if cfg.Output.ReportPath != "" {
		writeReports(cfg.Output.ReportPath, reports)
	}
}

func loadConfig(path string) *config.Config {
	if path == "" {
		if def := config.GetConfigPath(); utils.FileExists(def) {
			path = def
		}
	}
	if path == "" {
		return config.Default()
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func newClassifier(cfg *config.Config) (classifier.BatchClassifier, error) {
	switch cfg.Classifier.Backend {
	case "ollama":
		url := cfg.Classifier.URL
		if url == "" {
			url = "http://localhost:11434"
		}
		return ollama.NewClient(url, cfg.Classifier.Model)
	case "llamacpp":
		return llamacpp.NewClient(cfg.Classifier.URL, cfg.Classifier.Model)
	default:
		return nil, fmt.Errorf("unknown backend: %s", cfg.Classifier.Backend)
	}
}

// resolveSources expands a directory input into its image files; a file or
// URL passes through as-is.
func resolveSources(in string) []string {
	if !utils.DirExists(in) {
		return []string{in}
	}
	files, err := utils.ListImageFiles(in)
	if err != nil {
		log.Fatalf("failed to list images in %s: %v", in, err)
	}
	if len(files) == 0 {
		log.Fatalf("no image files found in %s", in)
	}
	return files
}

func evaluateOne(detector *blurdetector.Detector, cfg *config.Config, src string) (report, error) {
	img, err := imageio.LoadSmart(src)
	if err != nil {
		return report{}, fmt.Errorf("failed to load image: %w", err)
	}

	result, err := detector.Evaluate(context.Background(), img, blurdetector.Options{})
	if err != nil {
		return report{}, err
	}

	rep := report{
		Source:      src,
		Probability: result.Probability,
		Patches:     make([]patchReport, len(result.Patches)),
	}
	for i, p := range result.Patches {
		rep.Patches[i] = patchReport{
			Label:      string(p.Label),
			Confidence: p.Confidence,
			Rect:       p.Rect,
		}
	}

	if cfg.Output.PatchDir != "" {
		if err := dumpPatches(cfg, src, result.Patches); err != nil {
			// Patch dumps are diagnostics, never gate the evaluation.
			log.Printf("patch dump failed: %v", err)
		}
	}
	return rep, nil
}

// dumpPatches saves each patch crop with its label and confidence stamped
// into the filename, e.g. photo_007_blurred_0.92.jpg.
func dumpPatches(cfg *config.Config, src string, patches []types.PerPatchResult) error {
	if err := utils.EnsureDir(cfg.Output.PatchDir); err != nil {
		return err
	}
	for i, p := range patches {
		name := fmt.Sprintf("%s_%03d_%s_%.2f.%s", baseName(src), i, p.Label, p.Confidence, cfg.Output.Format)
		path := filepath.Join(cfg.Output.PatchDir, name)
		if err := imageio.Save(p.Image, path, cfg.Output.Format, cfg.Output.Quality, false); err != nil {
			return err
		}
	}
	return nil
}

func writeReports(path string, reports []report) {
	var payload any = reports
	if len(reports) == 1 {
		payload = reports[0]
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal report: %v", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := utils.EnsureDir(dir); err != nil {
			log.Fatalf("failed to create report directory: %v", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Fatalf("failed to write report: %v", err)
	}
	log.Printf("wrote %s", path)
}

func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
