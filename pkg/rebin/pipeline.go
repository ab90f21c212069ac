package rebin

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"jp2rebin/internal/models"
)

const (
	// DefaultRatio is the codec compression ratio used when the caller does
	// not supply one.
	DefaultRatio = 10

	// DefaultWorkers bounds concurrency when the caller does not supply a
	// worker count.
	DefaultWorkers = 4

	// IndexPadWidth is the fixed zero-pad width of output filenames. Output
	// order is recovered from these indices, so the width must cover the
	// largest expected output count.
	IndexPadWidth = 6
)

// Params configures one rebinning run.
type Params struct {
	// InputDir contains the jp2 slice stack.
	InputDir string

	// Factor is the integer downsampling factor applied to all three axes.
	// Must be > 1.
	Factor int

	// OutputDir is where reduced slices are written. Empty selects the
	// sibling directory <InputDir>_bin<Factor>.
	OutputDir string

	// Prefix is prepended to every output filename.
	Prefix string

	// Ratio is the codec compression ratio; 0 selects DefaultRatio.
	Ratio int

	// Workers bounds the number of slabs processed concurrently; 0 selects
	// DefaultWorkers. Peak resident pixel data is
	// Workers x Factor x height x width float64s.
	Workers int
}

// Pipeline orchestrates a rebinning run. It is the only component aware of
// parallelism; the reducer and writer it drives are stateless.
type Pipeline struct {
	params *Params
	stack  *models.Stack
	volume *Volume
}

// NewPipeline creates a pipeline for the given parameters.
func NewPipeline(params *Params) *Pipeline {
	return &Pipeline{params: params}
}

// Rebin validates params, plans the output grid, and runs one reduce-and-
// write job per output slab under ctx. It returns the output directory on
// success. Per-job failures never abort sibling jobs; after all jobs have
// finished, any failures are surfaced as a *RunError whose indices identify
// the missing outputs. Cancelling ctx stops scheduling of new jobs while
// letting in-flight jobs complete.
func Rebin(ctx context.Context, params *Params) (string, error) {
	return NewPipeline(params).Run(ctx)
}

// Run executes the pipeline. See Rebin.
func (p *Pipeline) Run(ctx context.Context) (string, error) {
	// Validation happens before any I/O beyond metadata reads.
	if p.params.Factor <= 1 {
		return "", &ParameterError{Msg: "bin_factor must be > 1"}
	}
	if p.params.Ratio == 0 {
		p.params.Ratio = DefaultRatio
	}
	if p.params.Ratio < 1 {
		return "", &ParameterError{Msg: "compression ratio must be >= 1"}
	}
	if p.params.Workers == 0 {
		p.params.Workers = DefaultWorkers
	}
	if p.params.Workers < 1 {
		return "", &ParameterError{Msg: "workers must be >= 1"}
	}

	stack, err := BuildIndex(p.params.InputDir)
	if err != nil {
		return "", err
	}
	p.stack = stack
	p.volume = NewVolume(stack)

	outputDir, jobs, err := p.plan()
	if err != nil {
		return "", err
	}

	if err := p.runJobs(ctx, jobs); err != nil {
		return "", err
	}
	return outputDir, nil
}

// plan computes the output grid, resolves and creates the output directory,
// and partitions the input depth into per-slab jobs.
func (p *Pipeline) plan() (string, []models.Job, error) {
	factor := p.params.Factor
	h, w, d := p.volume.Shape()
	outH := ceilDiv(h, factor)
	outW := ceilDiv(w, factor)
	outD := ceilDiv(d, factor)

	log.Printf("Found %d %s slices of %dx%d in %s", d, p.stack.DType, w, h, p.params.InputDir)
	log.Printf("Output shape is (%d, %d, %d)", outH, outW, outD)

	slabBytes := uint64(p.params.Workers) * uint64(factor) * uint64(h) * uint64(w) * 8
	log.Printf("Peak slab memory with %d workers: %s", p.params.Workers, humanize.IBytes(slabBytes))

	outputDir := p.params.OutputDir
	if outputDir == "" {
		parent := filepath.Dir(filepath.Clean(p.params.InputDir))
		outputDir = filepath.Join(parent, fmt.Sprintf("%s_bin%d", filepath.Base(filepath.Clean(p.params.InputDir)), factor))
	}
	// MkdirAll is idempotent: an existing directory, with whatever unrelated
	// files it holds, is left alone.
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", nil, &InputError{Dir: outputDir, Msg: "failed to create output directory", Err: err}
	}

	jobs := make([]models.Job, outD)
	for z := 0; z < outD; z++ {
		z1 := (z + 1) * factor
		if z1 > d {
			z1 = d
		}
		name := fmt.Sprintf("%s%0*d%s", p.params.Prefix, IndexPadWidth, z, filepath.Ext(p.stack.Slices[0].Path))
		jobs[z] = models.Job{
			Index:      z,
			Z0:         z * factor,
			Z1:         z1,
			OutputPath: filepath.Join(outputDir, name),
		}
	}
	return outputDir, jobs, nil
}

// runJobs dispatches every job to a bounded worker pool and drives all of
// them to completion, collecting per-job failures.
func (p *Pipeline) runJobs(ctx context.Context, jobs []models.Job) error {
	g := new(errgroup.Group)
	g.SetLimit(p.params.Workers)

	var mu sync.Mutex
	failed := make(map[int]error)
	completed := 0

	for _, job := range jobs {
		// Stop scheduling once the caller has aborted; jobs already running
		// are left to finish.
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			err := p.runJob(job)

			mu.Lock()
			completed++
			if err != nil {
				log.Printf("%s: %v", job, err)
				failed[job.Index] = err
			}
			progress := float64(completed) / float64(len(jobs)) * 100
			fmt.Printf("\rRebinning slabs: %.1f%% complete", progress)
			mu.Unlock()
			return nil
		})
	}

	g.Wait()
	fmt.Println()

	if len(failed) > 0 {
		return &RunError{Failed: failed}
	}
	return ctx.Err()
}

// runJob materializes one slab, reduces it, and writes the result. The slab
// buffer is released as soon as the job returns.
func (p *Pipeline) runJob(job models.Job) error {
	req, err := p.volume.Slab(job.Z0, job.Z1)
	if err != nil {
		return err
	}
	slab, err := req.Materialize()
	if err != nil {
		return err
	}

	reduced, err := Reduce(slab, p.params.Factor)
	if err != nil {
		return err
	}

	_, err = WriteReduced(reduced, job.OutputPath, p.stack.DType, p.params.Ratio)
	return err
}
