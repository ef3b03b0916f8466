package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"objectvision/internal/config"
	"objectvision/internal/logger"
	"objectvision/internal/service"
	"objectvision/internal/service/ai"
	"objectvision/internal/service/pipeline"
)

func main() {
	mode := flag.String("mode", "detect", "pipeline to run: detect or segment")
	in := flag.String("in", "", "input image path")
	out := flag.String("out", ".", "output directory for the processed image")
	flag.Parse()

	if *in == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	logger := logger.NewLogger(cfg)

	var run service.RunFunc
	switch *mode {
	case "detect":
		detector, err := ai.NewDetectorService(cfg, logger)
		if err != nil {
			log.Fatalf("Failed to load detector: %v", err)
		}
		defer detector.Close()
		run = pipeline.NewDetectionPipeline(detector, cfg, logger).Detect
	case "segment":
		segmenter, err := ai.NewSegmenterService(cfg, logger)
		if err != nil {
			log.Fatalf("Failed to load segmenter: %v", err)
		}
		defer segmenter.Close()
		run = pipeline.NewSegmentationPipeline(segmenter, cfg, nil, logger).Segment
	default:
		log.Fatalf("Unknown mode %q: expected detect or segment", *mode)
	}

	dst := service.OutputPath(*in, *out)
	detections, err := service.AnnotateFile(run, *in, dst)
	if err != nil {
		logger.Error("Annotating %s failed: %v", *in, err)
		os.Exit(1)
	}

	for _, d := range detections {
		fmt.Printf("%s %.2f %v\n", d.Label, d.Score, d.Box)
	}
	fmt.Println(dst)
}
