package ham

import (
	"fmt"
	"os"

	"github.com/inodb/vibe-ham/internal/orthoxml"
	"github.com/inodb/vibe-ham/internal/taxonomy"
)

// LoadTree reads a Newick species tree from a file.
func LoadTree(path string, useInternalNames bool) (*taxonomy.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read species tree: %w", err)
	}
	tree, err := taxonomy.Parse(string(data), taxonomy.Options{UseInternalNames: useInternalNames})
	if err != nil {
		return nil, fmt.Errorf("parse species tree %s: %w", path, err)
	}
	return tree, nil
}

// Load builds a session from a Newick tree file and an OrthoXML file. When
// opts.Query holds queries, the OrthoXML file is read twice: once by the
// filter prepass and once by the builder.
func Load(treePath, hogPath string, opts Options) (*Ham, error) {
	tree, err := LoadTree(treePath, opts.UseInternalNames)
	if err != nil {
		return nil, err
	}

	if opts.Query != nil && !opts.Query.Empty() {
		if hogPath == "-" {
			return nil, fmt.Errorf("filtered loading needs a file, standard input can only be read once")
		}
		if opts.Logger != nil {
			opts.Query.SetLogger(opts.Logger)
		}
		res, err := runFilter(opts.Query, hogPath)
		if err != nil {
			return nil, err
		}
		opts.Retain = res
	}

	r, err := orthoxml.NewReader(hogPath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	h, err := Build(tree, r, opts)
	if err != nil {
		return nil, fmt.Errorf("build hierarchy from %s: %w", hogPath, err)
	}
	return h, nil
}

func runFilter(f *Filter, hogPath string) (*FilterResult, error) {
	r, err := orthoxml.NewReader(hogPath)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return f.Build(r)
}
