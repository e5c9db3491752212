package main

import (
	"flag"
	"fmt"
	"log"
	"math"

	"volpatch/internal/models"
	"volpatch/pkg/config"
	"volpatch/pkg/patch"
	"volpatch/pkg/tensor"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "volpatch.yaml", "Path to YAML configuration file")
	writeConfig := flag.Bool("write-config", false, "Write the default configuration to the config path and exit")
	demo := flag.Bool("demo", false, "Sample one patch from a synthetic volume and print its summary")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write default config: %v", err)
		}
		fmt.Printf("Default configuration written to: %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	patchCfg, err := cfg.PatchConfig()
	if err != nil {
		log.Fatalf("Invalid patch configuration: %v", err)
	}

	p, err := patch.New(patchCfg)
	if err != nil {
		log.Fatalf("Failed to build patch record: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("VOLPATCH - PATCH RECORD INSPECTOR")
	fmt.Println("================================")

	fmt.Printf("Spatial rank: %s (%.1f)\n", p.SpatialRank(), p.SpatialRank().Value())
	fmt.Printf("Image shape: %v\n", p.ImageShape())
	fmt.Printf("Info shape: %v\n", p.InfoShape())
	if p.HasLabels() {
		fmt.Printf("Label shape: %v\n", p.LabelShape())
	} else {
		fmt.Println("Labels: disabled")
	}
	if p.HasWeightMaps() {
		fmt.Printf("Weight map shape: %v\n", p.WeightMapShape())
	} else {
		fmt.Println("Weight maps: disabled")
	}

	fmt.Println("\nInput declarations:")
	placeholders := p.CreatePlaceholders()
	for _, ph := range placeholders {
		fmt.Printf("  %-10s %-8s %v\n", ph.Name, ph.DType, ph.Shape)
	}

	if !*demo {
		return
	}

	fmt.Println("\nSampling a patch from a synthetic volume...")

	size := p.ImageSize()
	extent := 2 * size
	vol, err := syntheticVolume("image", extent, patchCfg.ImageDType, patchCfg.NumImageModality)
	if err != nil {
		log.Fatalf("Failed to build synthetic volume: %v", err)
	}

	var seg, wmap patch.Source
	if p.HasLabels() {
		labels, err := syntheticVolume("labels", extent, patchCfg.LabelDType, patchCfg.NumLabelModality)
		if err != nil {
			log.Fatalf("Failed to build synthetic labels: %v", err)
		}
		seg = labels
	}
	if p.HasWeightMaps() {
		weights, err := syntheticVolume("weights", extent, patchCfg.WeightMapDType, patchCfg.NumWeightMap)
		if err != nil {
			log.Fatalf("Failed to build synthetic weight maps: %v", err)
		}
		wmap = weights
	}

	loc := demoLocation(p.SpatialRank(), size)
	if err := p.SetData(vol.SubjectID, loc, vol, seg, wmap); err != nil {
		log.Fatalf("Failed to sample patch: %v", err)
	}

	feed, err := p.AsFeed(placeholders)
	if err != nil {
		log.Fatalf("Failed to build feed: %v", err)
	}

	info, _ := p.Info()
	fmt.Printf("Patch location: %v\n", info.Int64s())
	for i, ph := range feed.Placeholders {
		v := feed.Values[i]
		fmt.Printf("  %-10s shape=%v mean=%.4f stddev=%.4f\n",
			ph.Name, v.Shape(), v.Mean(), v.StdDev())
	}
}

// syntheticVolume builds a cube-shaped test volume with a smooth radial
// intensity gradient. Integer element types get the gradient thresholded
// into a binary sphere, which makes a plausible stand-in segmentation.
func syntheticVolume(name string, extent int, dtype tensor.DType, channels int) (*models.Volume, error) {
	shape := tensor.Shape{extent, extent, extent, channels}
	data, err := tensor.New(dtype, shape)
	if err != nil {
		return nil, err
	}
	integer := dtype == tensor.Int32 || dtype == tensor.Int64

	center := float64(extent) / 2
	for x := 0; x < extent; x++ {
		for y := 0; y < extent; y++ {
			for z := 0; z < extent; z++ {
				dx, dy, dz := float64(x)-center, float64(y)-center, float64(z)-center
				v := math.Sqrt(dx*dx+dy*dy+dz*dz) / center
				if integer {
					if v < 0.5 {
						v = 1
					} else {
						v = 0
					}
				}
				for c := 0; c < channels; c++ {
					data.Set(v, x, y, z, c)
				}
			}
		}
	}
	return models.NewVolume(name, 7, data)
}

// demoLocation returns a patch location at the source origin for the
// given rank.
func demoLocation(rank patch.Rank, size int) []int {
	switch rank {
	case patch.Rank3D:
		return []int{0, 0, 0, size, size, size}
	case patch.Rank2HalfD:
		return []int{0, 0, 0, size, size}
	default:
		return []int{0, 0, size, size}
	}
}
