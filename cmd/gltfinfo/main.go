// Command gltfinfo loads a glTF 2.0 asset and prints the renderer-ready data the loader produced.
//
// Usage:
//
//	gltfinfo [flags] <path-or-url>
//
// Exit status is 2 for malformed assets, 3 for unreachable resources, 4 for unsupported
// features and 1 for anything else.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Carmen-Shannon/oxy-gltf/engine/loader"
	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
	"github.com/Carmen-Shannon/oxy-gltf/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-gltf/engine/renderer/shader"

	"github.com/charmbracelet/log"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/schollz/progressbar/v3"
)

const (
	exitError       = 1
	exitFormat      = 2
	exitResource    = 3
	exitUnsupported = 4
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("gltfinfo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "loader config file (.yaml, .yml or .toml)")
	verbose := fs.Bool("v", false, "log load stages at debug level")
	workers := fs.Int("workers", -1, "prefetch workers, 0 disables prefetch")
	timeout := fs.Duration("timeout", 0, "per-request HTTP timeout")
	forceU32 := fs.Bool("u32", false, "always emit 32-bit indices")
	quiet := fs.Bool("q", false, "no download progress")
	shaderPath := fs.String("shader", "", "annotated WGSL shader to specialize for every pipeline variant")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: gltfinfo [flags] <path-or-url>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitError
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitError
	}
	target := fs.Arg(0)

	var shaderSrc string
	if *shaderPath != "" {
		src, err := os.ReadFile(*shaderPath)
		if err != nil {
			fmt.Fprintf(stderr, "cannot read shader: %v\n", err)
			return exitError
		}
		shaderSrc = string(src)
	}

	logger := log.NewWithOptions(stderr, log.Options{
		Prefix:          "gltfinfo",
		Level:           log.WarnLevel,
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	})

	var opts []loader.LoaderBuilderOption
	if *configPath != "" {
		cfg, err := loader.LoadConfig(*configPath)
		if err != nil {
			logger.Error("bad config", "path", *configPath, "err", err)
			return exitError
		}
		opts = append(opts, cfg.Options(logger)...)
	}

	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}
	opts = append(opts, loader.WithLogger(logger))
	if *workers >= 0 {
		opts = append(opts, loader.WithWorkers(*workers))
	}
	if *timeout > 0 {
		opts = append(opts, loader.WithHTTPTimeout(*timeout))
	}
	if *forceU32 {
		opts = append(opts, loader.WithIndexFormat(wgpu.IndexFormatUint32))
	}
	if !*quiet {
		opts = append(opts, loader.WithHTTPProgress(func(uri string, contentLength int64) io.Writer {
			return progressbar.DefaultBytes(contentLength, "download "+shorten(uri))
		}))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	l := loader.NewLoader(loader.BackendTypeGLTF, opts...)
	defer l.Close()

	m, err := l.Load(ctx, target)
	if err != nil {
		logger.Error("load failed", "asset", target, "err", err)
		return exitCode(err)
	}

	printModel(stdout, m)
	if shaderSrc != "" {
		if err := printShaderVariants(stdout, m, shaderSrc); err != nil {
			logger.Error("shader pre-processing failed", "shader", *shaderPath, "err", err)
			return exitError
		}
	}
	return 0
}

// exitCode maps the loader's error kinds onto exit statuses.
func exitCode(err error) int {
	var (
		formatErr      *loader.FormatError
		resourceErr    *loader.ResourceError
		unsupportedErr *loader.UnsupportedFeatureError
	)
	switch {
	case errors.As(err, &unsupportedErr):
		return exitUnsupported
	case errors.As(err, &resourceErr):
		return exitResource
	case errors.As(err, &formatErr):
		return exitFormat
	default:
		return exitError
	}
}

func printModel(w io.Writer, m model.Model) {
	b := m.Bounds()
	fmt.Fprintf(w, "model %q (%s)\n", m.Name(), m.ID())
	fmt.Fprintf(w, "  bounds  min %v  max %v\n", b.Min, b.Max)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "\nMESH\tVERTICES\tSTRIDE\tINDICES\tFORMAT\tSUBMESHES\tDEFINES\n")
	for i, mesh := range m.Meshes() {
		indexCount, format := 0, "-"
		if mesh.Indices != nil {
			indexCount = mesh.Indices.Len()
			format = indexFormatName(mesh.Indices.Format())
		}
		fmt.Fprintf(tw, "%d %s\t%d\t%d\t%d\t%s\t%d\t%s\n", i, mesh.Name, mesh.VertexCount, mesh.Stride(),
			indexCount, format, len(mesh.SubMeshes), strings.Join(mesh.Defines, " "))
		for j, sm := range mesh.SubMeshes {
			topology := sm.Topology.String()
			if _, ok := sm.Topology.WGPU(); !ok {
				topology += " (no wgpu equivalent)"
			}
			fmt.Fprintf(tw, "  %d\t%s\tdraw %d @ %d\t\t\t\t%s\n", j, topology, sm.DrawCount, sm.DrawOffset, sm.Material.Name())
		}
	}

	fmt.Fprintf(tw, "\nPIPELINE\tKEY\n")
	for i, mesh := range m.Meshes() {
		for j := range mesh.SubMeshes {
			p, err := pipeline.NewPipeline(mesh, &mesh.SubMeshes[j])
			if err != nil {
				fmt.Fprintf(tw, "%d.%d\t%v\n", i, j, err)
				continue
			}
			fmt.Fprintf(tw, "%d.%d\t%s\n", i, j, p.PipelineKey())
		}
	}

	fmt.Fprintf(tw, "\nMATERIAL\tALPHA\tDOUBLE SIDED\tDEFINES\n")
	for i, mat := range m.Materials() {
		fmt.Fprintf(tw, "%d %s\t%s\t%t\t%s\n", i, mat.Name(), mat.AlphaMode(), mat.DoubleSided(), strings.Join(mat.Defines(), " "))
	}

	fmt.Fprintf(tw, "\nTEXTURE\tIMAGE\tMIME\tBYTES\n")
	for i, tex := range m.Textures() {
		if tex.Image == nil {
			fmt.Fprintf(tw, "%d %s\t-\t-\t0\n", i, tex.Name)
			continue
		}
		fmt.Fprintf(tw, "%d %s\t%s\t%s\t%d\n", i, tex.Name, tex.Image.Name, tex.Image.MimeType, len(tex.Image.Data))
	}

	fmt.Fprintf(tw, "\nSKIN\tJOINTS\tSKELETON\n")
	for i, skin := range m.Skins() {
		skeleton := "-"
		if skin.Skeleton != nil {
			skeleton = fmt.Sprint(*skin.Skeleton)
		}
		fmt.Fprintf(tw, "%d %s\t%d\t%s\n", i, skin.Name, len(skin.Joints), skeleton)
	}
}

// printShaderVariants specializes src once per distinct shader variant in m and lists the
// resulting line count and resource bindings.
func printShaderVariants(w io.Writer, m model.Model, src string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "\nSHADER VARIANT\tLINES\tBINDINGS\n")
	pre := shader.NewPreProcessor()
	seen := make(map[string]bool)
	for _, mesh := range m.Meshes() {
		for j := range mesh.SubMeshes {
			p, err := pipeline.NewPipeline(mesh, &mesh.SubMeshes[j])
			if err != nil {
				continue
			}
			variant := p.Variant()
			key := variant.Key()
			if seen[key] {
				continue
			}
			seen[key] = true

			out, err := pre.Process(src, variant)
			if err != nil {
				return fmt.Errorf("variant %s: %w", key, err)
			}
			var bindings []string
			for _, d := range pre.Declarations() {
				bindings = append(bindings, fmt.Sprintf("%s@%d/%d", d.Type, *d.Group, *d.Binding))
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\n", key, strings.Count(out, "\n")+1, strings.Join(bindings, " "))
		}
	}
	return nil
}

func indexFormatName(f wgpu.IndexFormat) string {
	if f == wgpu.IndexFormatUint32 {
		return "u32"
	}
	return "u16"
}

func shorten(uri string) string {
	if i := strings.LastIndex(uri, "/"); i >= 0 && i < len(uri)-1 {
		return uri[i+1:]
	}
	return uri
}
