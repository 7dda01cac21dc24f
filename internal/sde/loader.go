package sde

import (
	"archive/zip"
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"eve-nerd/internal/graph"
	"eve-nerd/internal/logger"
)

const sdeURL = "https://developers.eveonline.com/static-data/eve-online-static-data-latest-jsonl.zip"

// Load downloads (if needed) and parses the JSONL static data export: regions,
// solar systems, stargates and NPC stations.
func Load(dataDir string) (*Data, error) {
	zipPath := filepath.Join(dataDir, "sde.zip")
	extractDir := filepath.Join(dataDir, "sde")

	if _, err := os.Stat(extractDir); os.IsNotExist(err) {
		logger.Info("SDE", "Downloading data...")
		if err := downloadFile(zipPath, sdeURL); err != nil {
			return nil, fmt.Errorf("download SDE: %w", err)
		}
		logger.Info("SDE", "Extracting data...")
		if err := extractZip(zipPath, extractDir); err != nil {
			return nil, fmt.Errorf("extract SDE: %w", err)
		}
	}
	return LoadDir(extractDir)
}

// LoadDir parses an already extracted export.
func LoadDir(dir string) (*Data, error) {
	data := newData()
	b := &gateBuilder{}

	logger.Info("SDE", "Loading regions...")
	if err := data.loadRegions(dir); err != nil {
		return nil, err
	}
	logger.Info("SDE", "Loading solar systems...")
	if err := data.loadSystems(dir); err != nil {
		return nil, err
	}
	logger.Info("SDE", "Loading stargates...")
	if err := data.loadStargates(dir, b); err != nil {
		return nil, err
	}
	logger.Info("SDE", "Loading stations...")
	if err := data.loadStations(dir); err != nil {
		return nil, err
	}

	data.Links = b.links(data)
	if len(data.Systems) == 0 {
		return nil, fmt.Errorf("no solar systems found in %s", dir)
	}
	data.sort()
	data.logStats("SDE")
	return data, nil
}

type position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (d *Data) loadRegions(dir string) error {
	return readJSONL(dir, "mapRegions", func(raw json.RawMessage) error {
		var r struct {
			Key  int32             `json:"_key"`
			Name map[string]string `json:"name"`
		}
		if err := json.Unmarshal(raw, &r); err != nil {
			return err
		}
		if name := r.Name["en"]; name != "" {
			d.Regions[r.Key] = name
		}
		return nil
	})
}

func (d *Data) loadSystems(dir string) error {
	return readJSONL(dir, "mapSolarSystems", func(raw json.RawMessage) error {
		var s struct {
			Key            int32             `json:"_key"`
			Name           map[string]string `json:"name"`
			RegionID       int32             `json:"regionID"`
			Security       float64           `json:"security"`
			SecurityStatus float64           `json:"securityStatus"` // alternate SDE field name
			Position       position          `json:"position"`
		}
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		name := s.Name["en"]
		if name == "" {
			return nil
		}
		sec := s.Security
		if sec == 0 && s.SecurityStatus != 0 {
			sec = s.SecurityStatus
		}
		d.addSystem(graph.System{
			ID:       s.Key,
			Name:     name,
			X:        s.Position.X,
			Y:        s.Position.Y,
			Z:        s.Position.Z,
			RegionID: s.RegionID,
			Security: sec,
		})
		return nil
	})
}

func (d *Data) loadStargates(dir string, b *gateBuilder) error {
	return readJSONL(dir, "mapStargates", func(raw json.RawMessage) error {
		var g struct {
			Key           int64    `json:"_key"`
			SolarSystemID int32    `json:"solarSystemID"`
			Position      position `json:"position"`
			Destination   struct {
				SolarSystemID int32 `json:"solarSystemID"`
				StargateID    int64 `json:"stargateID"`
			} `json:"destination"`
		}
		if err := json.Unmarshal(raw, &g); err != nil {
			return err
		}
		if g.Key == 0 || g.SolarSystemID == 0 {
			return nil
		}
		b.add(gateRecord{
			id:         g.Key,
			systemID:   g.SolarSystemID,
			destGate:   g.Destination.StargateID,
			destSystem: g.Destination.SolarSystemID,
			pos:        g.Position,
		})
		return nil
	})
}

func (d *Data) loadStations(dir string) error {
	// npcStations carries no names; they are derived from the system name.
	return readJSONL(dir, "npcStations", func(raw json.RawMessage) error {
		var s struct {
			Key           int64    `json:"_key"`
			SolarSystemID int32    `json:"solarSystemID"`
			Position      position `json:"position"`
		}
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		if _, ok := d.systemSet[s.SolarSystemID]; !ok || s.Key == 0 {
			return nil
		}
		d.Structures = append(d.Structures, graph.Structure{
			ID:       s.Key,
			SystemID: s.SolarSystemID,
			Name:     fmt.Sprintf("Station in %s", d.systemSet[s.SolarSystemID]),
			Kind:     graph.KindStation,
			X:        s.Position.X,
			Y:        s.Position.Y,
			Z:        s.Position.Z,
		})
		return nil
	})
}

// readJSONL finds and reads a .jsonl file by base name from the extracted SDE directory.
func readJSONL(dir, baseName string, fn func(json.RawMessage) error) error {
	// Search for the file recursively
	var filePath string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		name := strings.TrimSuffix(info.Name(), ".jsonl")
		if !info.IsDir() && strings.EqualFold(name, baseName) {
			filePath = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil && err != filepath.SkipAll {
		return err
	}
	if filePath == "" {
		logger.Warn("SDE", fmt.Sprintf("File %s.jsonl not found, skipping", baseName))
		return nil
	}

	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	skipped := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(json.RawMessage(line)); err != nil {
			skipped++
		}
	}
	if skipped > 0 {
		logger.Warn("SDE", fmt.Sprintf("%s: skipped %d malformed lines", baseName, skipped))
	}
	return scanner.Err()
}

func downloadFile(dst, url string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, resp.Body)
	return err
}

func extractZip(src, dst string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	dstAbs, err := filepath.Abs(dst)
	if err != nil {
		return fmt.Errorf("resolve extract dir: %w", err)
	}

	for _, f := range r.File {
		fpath := filepath.Join(dstAbs, f.Name)
		// zip slip
		if rel, err := filepath.Rel(dstAbs, fpath); err != nil || strings.HasPrefix(rel, "..") {
			return fmt.Errorf("illegal zip entry path: %s", f.Name)
		}
		if f.FileInfo().IsDir() {
			os.MkdirAll(fpath, 0755)
			continue
		}
		if err := extractFile(f, fpath); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, fpath string) error {
	if err := os.MkdirAll(filepath.Dir(fpath), 0755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	out, err := os.Create(fpath)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, rc)
	return err
}
