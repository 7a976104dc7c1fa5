package datasets

import (
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sarchlab/gnnbench/graph"
)

// LoadOGB reads a node-property-prediction dataset in the OGB on-disk
// layout rooted at dir/name:
//
//	raw/edge.csv.gz        one "src,dst" pair per line
//	raw/node-feat.csv.gz   one feature row per node
//	raw/node-label.csv.gz  one integer label per node
//	split/train.csv.gz     node indices, one per line
//	split/valid.csv.gz
//	split/test.csv.gz
//
// Files may also be stored without the .gz suffix.
func LoadOGB(name, dir string) (*Dataset, error) {
	root := filepath.Join(dir, name)

	d := &Dataset{Name: name}

	features, inDim, err := readFloatRows(filepath.Join(root, "raw", "node-feat.csv"))
	if err != nil {
		return nil, err
	}
	d.Features = features
	d.InDim = inDim

	labels, err := readIntColumn(filepath.Join(root, "raw", "node-label.csv"))
	if err != nil {
		return nil, err
	}
	d.Labels = labels

	numNodes := len(labels)
	if inDim == 0 || len(features)/inDim != numNodes {
		return nil, fmt.Errorf(
			"dataset %s: %d label rows but %d feature rows",
			name, numNodes, len(features)/max(inDim, 1))
	}

	src, dst, err := readEdgeList(filepath.Join(root, "raw", "edge.csv"))
	if err != nil {
		return nil, err
	}
	d.Graph = graph.NewGraphFromEdges(numNodes, src, dst)

	d.TrainIdx, err = readIntColumn(filepath.Join(root, "split", "train.csv"))
	if err != nil {
		return nil, err
	}
	d.ValIdx, err = readIntColumn(filepath.Join(root, "split", "valid.csv"))
	if err != nil {
		return nil, err
	}
	d.TestIdx, err = readIntColumn(filepath.Join(root, "split", "test.csv"))
	if err != nil {
		return nil, err
	}

	d.finalize()

	return d, nil
}

// openMaybeGzip opens path, or path+".gz" with transparent decompression.
func openMaybeGzip(path string) (io.ReadCloser, error) {
	if f, err := os.Open(path); err == nil {
		return f, nil
	}

	f, err := os.Open(path + ".gz")
	if err != nil {
		return nil, fmt.Errorf("open %s[.gz]: %w", path, err)
	}

	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open %s.gz: %w", path, err)
	}

	return &gzipFile{gz: gz, f: f}, nil
}

type gzipFile struct {
	gz *gzip.Reader
	f  *os.File
}

func (g *gzipFile) Read(p []byte) (int, error) {
	return g.gz.Read(p)
}

func (g *gzipFile) Close() error {
	gzErr := g.gz.Close()
	fErr := g.f.Close()
	if gzErr != nil {
		return gzErr
	}
	return fErr
}

func readFloatRows(path string) (data []float64, width int, err error) {
	r, err := openMaybeGzip(path)
	if err != nil {
		return nil, 0, err
	}
	defer r.Close()

	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read %s: %w", path, err)
		}

		if width == 0 {
			width = len(record)
		} else if len(record) != width {
			return nil, 0, fmt.Errorf(
				"read %s: inconsistent row width", path)
		}

		for _, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, 0, fmt.Errorf("read %s: %w", path, err)
			}
			data = append(data, v)
		}
	}

	return data, width, nil
}

func readIntColumn(path string) ([]int, error) {
	r, err := openMaybeGzip(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	var out []int
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		v, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		out = append(out, v)
	}

	return out, nil
}

func readEdgeList(path string) (src, dst []int, err error) {
	r, err := openMaybeGzip(path)
	if err != nil {
		return nil, nil, err
	}
	defer r.Close()

	reader := csv.NewReader(r)
	reader.ReuseRecord = true
	reader.FieldsPerRecord = 2

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", path, err)
		}

		s, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", path, err)
		}
		d, err := strconv.Atoi(record[1])
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", path, err)
		}

		src = append(src, s)
		dst = append(dst, d)
	}

	return src, dst, nil
}
