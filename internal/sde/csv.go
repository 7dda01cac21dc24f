package sde

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"eve-nerd/internal/graph"
	"eve-nerd/internal/logger"
)

// mapDenormalize group ids.
const (
	groupSystem   = 5
	groupSun      = 6
	groupPlanet   = 7
	groupMoon     = 8
	groupBelt     = 9
	groupStargate = 10
	groupStation  = 15
)

var denormalizeColumns = []string{
	"itemID", "typeID", "groupID", "solarSystemID", "constellationID", "regionID",
	"orbitID", "x", "y", "z", "radius", "itemName", "security", "celestialIndex", "orbitIndex",
}

// LoadCSV reads the mapDenormalize and mapJumps dumps. Either file may be
// gzip (.gz) or zstd (.zst) compressed. Systems come from group 5 rows,
// stargates and stations from groups 10 and 15, and planets, moons and belts
// become celestials; suns are implicit at each system's origin.
func LoadCSV(denormalizePath, jumpsPath string) (*Data, error) {
	data := newData()
	b := &gateBuilder{}

	logger.Info("CSV", "Loading "+denormalizePath+"...")
	if err := readCSV(denormalizePath, denormalizeColumns, func(row csvRow) error {
		return data.denormalizeRow(row, b)
	}); err != nil {
		return nil, fmt.Errorf("load %s: %w", denormalizePath, err)
	}

	logger.Info("CSV", "Loading "+jumpsPath+"...")
	missing := 0
	if err := readCSV(jumpsPath, []string{"stargateID", "destinationID"}, func(row csvRow) error {
		from, err := row.intField("stargateID")
		if err != nil {
			return err
		}
		to, err := row.intField("destinationID")
		if err != nil {
			return err
		}
		if !b.setDestination(from, to) {
			missing++
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("load %s: %w", jumpsPath, err)
	}
	if missing > 0 {
		logger.Warn("CSV", fmt.Sprintf("%d jumps reference unknown stargates", missing))
	}

	data.Links = b.links(data)
	if len(data.Systems) == 0 {
		return nil, fmt.Errorf("no solar systems found in %s", denormalizePath)
	}
	data.sort()
	data.logStats("CSV")
	return data, nil
}

func (d *Data) denormalizeRow(row csvRow, b *gateBuilder) error {
	group, err := row.intField("groupID")
	if err != nil {
		return err
	}
	if group == groupSun {
		return nil
	}
	id, err := row.intField("itemID")
	if err != nil {
		return err
	}
	x, y, z, err := row.position()
	if err != nil {
		return err
	}
	name := row.get("itemName")

	if group == groupSystem {
		region, _ := row.intField("regionID")
		sec, _ := row.floatField("security")
		d.addSystem(graph.System{
			ID: int32(id), Name: name, X: x, Y: y, Z: z,
			RegionID: int32(region), Security: sec,
		})
		return nil
	}

	sys, err := row.intField("solarSystemID")
	if err != nil || sys == 0 {
		return nil
	}
	if _, ok := d.systemSet[int32(sys)]; !ok {
		return nil
	}

	switch group {
	case groupStargate:
		b.add(gateRecord{id: id, systemID: int32(sys), name: name, pos: position{x, y, z}})
	case groupStation:
		d.Structures = append(d.Structures, graph.Structure{
			ID: id, SystemID: int32(sys), Name: name, Kind: graph.KindStation, X: x, Y: y, Z: z,
		})
	case groupPlanet, groupMoon, groupBelt:
		d.Structures = append(d.Structures, graph.Structure{
			ID: id, SystemID: int32(sys), Name: name, Kind: graph.KindCelestial, X: x, Y: y, Z: z,
		})
	}
	return nil
}

// csvRow gives named access to one record.
type csvRow struct {
	cols   map[string]int
	record []string
}

func (r csvRow) get(name string) string {
	i, ok := r.cols[name]
	if !ok || i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

func (r csvRow) intField(name string) (int64, error) {
	v := r.get(name)
	if v == "" || strings.EqualFold(v, "NULL") {
		return 0, fmt.Errorf("column %s is empty", name)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		// some dumps write ids as floats
		f, ferr := strconv.ParseFloat(v, 64)
		if ferr != nil {
			return 0, fmt.Errorf("column %s: %w", name, err)
		}
		n = int64(f)
	}
	return n, nil
}

func (r csvRow) floatField(name string) (float64, error) {
	v := r.get(name)
	if v == "" || strings.EqualFold(v, "NULL") {
		return 0, fmt.Errorf("column %s is empty", name)
	}
	return strconv.ParseFloat(v, 64)
}

func (r csvRow) position() (x, y, z float64, err error) {
	if x, err = r.floatField("x"); err != nil {
		return
	}
	if y, err = r.floatField("y"); err != nil {
		return
	}
	z, err = r.floatField("z")
	return
}

// readCSV streams a CSV file. If the first record names the columns it is
// used as the header, otherwise the columns are taken in the order given.
// Malformed rows are counted and skipped.
func readCSV(path string, columns []string, fn func(csvRow) error) error {
	rc, err := openCompressed(path)
	if err != nil {
		return err
	}
	defer rc.Close()

	r := csv.NewReader(rc)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	cols := make(map[string]int, len(columns))
	for i, c := range columns {
		cols[c] = i
	}

	skipped := 0
	first := true
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skipped++
				continue
			}
			return err
		}
		if first {
			first = false
			if header, ok := parseHeader(rec, columns); ok {
				cols = header
				continue
			}
		}
		if err := fn(csvRow{cols: cols, record: rec}); err != nil {
			skipped++
		}
	}
	if skipped > 0 {
		logger.Warn("CSV", fmt.Sprintf("%s: skipped %d malformed rows", path, skipped))
	}
	return nil
}

func parseHeader(rec []string, columns []string) (map[string]int, bool) {
	header := make(map[string]int, len(rec))
	for i, name := range rec {
		header[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, c := range columns[:min(2, len(columns))] {
		if _, ok := header[c]; !ok {
			return nil, false
		}
	}
	return header, true
}

type multiCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiCloser) Close() error {
	var errs []error
	for i := len(m.closers) - 1; i >= 0; i-- {
		errs = append(errs, m.closers[i].Close())
	}
	return errors.Join(errs...)
}

type zstdCloser struct{ *zstd.Decoder }

func (z zstdCloser) Close() error {
	z.Decoder.Close()
	return nil
}

// openCompressed opens path, transparently decompressing by extension.
func openCompressed(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	switch {
	case strings.HasSuffix(path, ".gz"):
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip %s: %w", path, err)
		}
		return &multiCloser{Reader: zr, closers: []io.Closer{f, zr}}, nil
	case strings.HasSuffix(path, ".zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("zstd %s: %w", path, err)
		}
		return &multiCloser{Reader: zr, closers: []io.Closer{f, zstdCloser{zr}}}, nil
	default:
		return f, nil
	}
}
