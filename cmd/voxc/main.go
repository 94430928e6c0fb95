// Command voxc compiles voxel graph documents to WGSL.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/voxgraph/artifact"
	"github.com/chazu/voxgraph/compiler"
	"github.com/chazu/voxgraph/compiler/hash"
	"github.com/chazu/voxgraph/graphdoc"
	"github.com/chazu/voxgraph/manifest"
	"github.com/chazu/voxgraph/pipeline"
	"github.com/chazu/voxgraph/server"
)

var log = commonlog.GetLogger("voxgraph.voxc")

type config struct {
	verbosity int
	dir       string
	source    string
	meta      string
	serve     bool
	addr      string
	remote    string
	schedule  bool
	ops       bool
	proto     bool
	fetch     string
	check     bool
	graph     string
}

func main() {
	cfg := config{}
	flag.IntVar(&cfg.verbosity, "v", 0, "Log verbosity (0 notice, 1 info, 2 debug)")
	flag.StringVar(&cfg.dir, "config", "", "Directory containing "+manifest.FileName+" (default: search upward from cwd)")
	flag.StringVar(&cfg.source, "o", "", "Write WGSL source to this path (default: from manifest)")
	flag.StringVar(&cfg.meta, "meta", "", "Write the CBOR artifact to this path (default: from manifest)")
	flag.BoolVar(&cfg.serve, "serve", false, "Run the compile server")
	flag.StringVar(&cfg.addr, "addr", "", "Server listen address (default: from manifest)")
	flag.StringVar(&cfg.remote, "remote", "", "Compile on the server at this URL instead of locally")
	flag.BoolVar(&cfg.schedule, "schedule", false, "Print the dispatch schedule")
	flag.BoolVar(&cfg.check, "check", false, "Validate the generated WGSL before writing it")
	flag.BoolVar(&cfg.ops, "ops", false, "List the node operations a graph document may use")
	flag.BoolVar(&cfg.proto, "proto", false, "Print the artifact service definition in .proto syntax")
	flag.StringVar(&cfg.fetch, "fetch", "", "Fetch the artifact with this hash from -remote over gRPC")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: voxc [options] [graph.yaml]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  voxc                         # Compile the project graph\n")
		fmt.Fprintf(os.Stderr, "  voxc -o out.wgsl cave.yaml   # Compile one document\n")
		fmt.Fprintf(os.Stderr, "  voxc -schedule               # Show dispatch stages\n")
		fmt.Fprintf(os.Stderr, "  voxc -serve -addr :7411      # Run the compile server\n")
		fmt.Fprintf(os.Stderr, "  voxc -remote http://localhost:7411 cave.yaml\n")
		fmt.Fprintf(os.Stderr, "  voxc -remote localhost:7411 -fetch <hash>\n")
	}
	flag.Parse()
	if flag.NArg() > 1 {
		flag.Usage()
		os.Exit(2)
	}
	cfg.graph = flag.Arg(0)

	commonlog.Configure(cfg.verbosity, nil)

	if err := run(context.Background(), cfg, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, out io.Writer) error {
	if cfg.ops {
		for _, op := range graphdoc.Ops() {
			fmt.Fprintln(out, op)
		}
		return nil
	}
	if cfg.proto {
		return server.WriteSchema(out)
	}

	m, err := loadManifest(cfg.dir)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(m)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.serve {
		addr := cfg.addr
		if addr == "" {
			addr = m.Server.Addr
		}
		srv := server.New(server.WithStore(store))
		defer srv.Stop()
		return srv.ListenAndServe(addr)
	}

	graphPath := m.GraphPath()
	if cfg.graph != "" {
		graphPath = cfg.graph
	}

	var a *artifact.Artifact
	switch {
	case cfg.fetch != "":
		a, err = fetchRemote(ctx, cfg.remote, cfg.fetch)
	case cfg.remote != "":
		a, err = compileRemote(ctx, cfg.remote, graphPath, m)
	default:
		a, err = compileLocal(ctx, graphPath, m, store)
	}
	if err != nil {
		return err
	}

	if cfg.check {
		if err := a.Check(); err != nil {
			return fmt.Errorf("%s: %w", a.Hash.Short(), err)
		}
	}

	sourcePath := m.SourcePath()
	if cfg.source != "" {
		sourcePath = cfg.source
	}
	metaPath := m.MetadataPath()
	if cfg.meta != "" {
		metaPath = cfg.meta
	}
	if err := writeArtifact(a, sourcePath, metaPath); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s -> %s\n", a.Hash.Short(), sourcePath)

	if cfg.schedule {
		printSchedule(out, a.Program(), m.Volume.Size)
	}
	return nil
}

// loadManifest loads the manifest in dir, or searches upward from the
// working directory. A missing manifest yields the defaults for the
// working directory.
func loadManifest(dir string) (*manifest.Manifest, error) {
	if dir != "" {
		return manifest.Load(dir)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	m, err := manifest.FindAndLoad(cwd)
	if err != nil {
		return nil, err
	}
	if m == nil {
		log.Info("no " + manifest.FileName + " found, using defaults")
		return manifest.Default(cwd)
	}
	return m, nil
}

func openStore(m *manifest.Manifest) (artifact.Store, func(), error) {
	path := m.CachePath()
	if path == "" {
		return artifact.NewMemoryStore(), func() {}, nil
	}
	s, err := artifact.OpenSQLite(path)
	if err != nil {
		return nil, nil, err
	}
	log.Debugf("artifact cache %s", path)
	return s, func() {
		if err := s.Close(); err != nil {
			log.Errorf("close cache: %s", err)
		}
	}, nil
}

func compileLocal(ctx context.Context, graphPath string, m *manifest.Manifest, store artifact.Store) (*artifact.Artifact, error) {
	doc, err := graphdoc.Load(graphPath)
	if err != nil {
		return nil, err
	}
	opts, err := m.Options()
	if err != nil {
		return nil, err
	}
	values, err := doc.Values()
	if err != nil {
		return nil, err
	}
	if overrides, ok := opts.Injector.(compiler.MapInjector); ok {
		for name, v := range overrides {
			values[name] = v
		}
	}
	opts.Injector = nil

	gen := pipeline.New(doc.Roots,
		pipeline.WithOptions(opts),
		pipeline.WithStore(store),
		pipeline.WithSeed(m.Seed),
		pipeline.WithValues(values),
	)
	defer gen.Close(ctx)

	res, err := gen.Rebuild(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", graphPath, err)
	}
	return artifact.FromProgram(res.Program), nil
}

func compileRemote(ctx context.Context, url, graphPath string, m *manifest.Manifest) (*artifact.Artifact, error) {
	data, err := os.ReadFile(graphPath)
	if err != nil {
		return nil, err
	}
	values, err := m.Values()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := server.NewClient(http.DefaultClient, url)
	res, err := client.Compile(ctx, &server.CompileRequest{
		Document:   data,
		Parameters: values,
		Required:   m.Volume.Required,
		Workgroup:  m.Volume.Workgroup,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", url, err)
	}
	if res.Known {
		log.Infof("%s already cached on %s", res.Artifact.Hash.Short(), url)
	}
	return res.Artifact, nil
}

// fetchRemote reads a stored artifact from the server's gRPC artifact
// service.
func fetchRemote(ctx context.Context, remote, hex string) (*artifact.Artifact, error) {
	if remote == "" {
		return nil, fmt.Errorf("-fetch needs -remote")
	}
	h, err := hash.ParseSum(hex)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	target := strings.TrimPrefix(strings.TrimPrefix(remote, "http://"), "https://")
	client, err := server.DialArtifacts(target)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	a, err := client.Get(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", remote, err)
	}
	return a, nil
}

func writeArtifact(a *artifact.Artifact, sourcePath, metaPath string) error {
	data, err := artifact.Marshal(a)
	if err != nil {
		return err
	}
	for path, content := range map[string][]byte{
		sourcePath: []byte(a.Source),
		metaPath:   data,
	} {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}

func printSchedule(out io.Writer, prog *compiler.Program, size uint32) {
	for i, stage := range prog.Schedule() {
		names := make([]string, 0, len(stage.Dispatches))
		for _, d := range stage.Dispatches {
			g := d.Grid(size, prog.Workgroup)
			names = append(names, fmt.Sprintf("%s(%dx%d)", d.Name, g[0], g[1]))
		}
		fmt.Fprintf(out, "stage %d: %s\n", i, strings.Join(names, " "))
	}
	for _, b := range prog.Buffers {
		fmt.Fprintf(out, "buffer %s %s [%s]\n", b.Name, b.Shape, b.Dispatch)
	}
}
