package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/finadmin/core"
	"github.com/trezcool/finadmin/core/mfo"
	"github.com/trezcool/finadmin/core/relation"
	"github.com/trezcool/finadmin/core/satellite"
)

const seedActor = "admin seed"

type (
	seedFile struct {
		MFOs []seedMFO `yaml:"mfos"`
		Keys []seedKey `yaml:"satellite_keys"`
	}

	seedMFO struct {
		Name     string   `yaml:"name"`
		Slug     string   `yaml:"slug"`
		Website  string   `yaml:"website"`
		Rating   float64  `yaml:"rating"`
		IsActive *bool    `yaml:"is_active"`
		Tags     []string `yaml:"tags"`
	}

	// seedKey lists its MFOs by slug.
	seedKey struct {
		Key     string   `yaml:"key"`
		TitleUK string   `yaml:"title_uk"`
		TitleRU string   `yaml:"title_ru"`
		MFOs    []string `yaml:"mfos"`
	}
)

type seedReport struct {
	mfosCreated, mfosSkipped int
	keysCreated, keysUpdated int
}

func loadSeedFile(path string) (seedFile, error) {
	var sf seedFile
	data, err := os.ReadFile(path)
	if err != nil {
		return sf, err
	}
	if err = yaml.Unmarshal(data, &sf); err != nil {
		return sf, errors.Wrapf(err, "parsing %s", path)
	}
	return sf, nil
}

// seed creates the MFOs of the file that do not exist yet, then creates its
// satellite keys or syncs the MFOs of existing ones to the file.
func (cli *commandLine) seed(path string) error {
	sf, err := loadSeedFile(path)
	if err != nil {
		return err
	}
	ctx := context.Background()
	var report seedReport

	mfos, err := cli.mfoSvc.Query(ctx, nil, nil)
	if err != nil {
		return errors.Wrap(err, "querying mfos")
	}
	idsBySlug := make(map[string]int, len(mfos))
	for _, m := range mfos {
		idsBySlug[m.Slug] = m.ID
	}

	for _, sm := range sf.MFOs {
		nm := mfo.NewMFO{
			Name:     sm.Name,
			Slug:     sm.Slug,
			Website:  sm.Website,
			Rating:   sm.Rating,
			IsActive: sm.IsActive,
			Tags:     core.JoinList(sm.Tags),
		}
		if _, exists := idsBySlug[core.CleanString(sm.Slug, true /* lower */)]; exists {
			report.mfosSkipped++
			continue
		}
		if err = nm.Validate(ctx, cli.validate, cli.mfoSvc); err != nil {
			return errors.Wrapf(err, "mfo %q", sm.Slug)
		}
		m, err := cli.mfoSvc.Create(ctx, nm)
		if err != nil {
			return errors.Wrapf(err, "creating mfo %q", sm.Slug)
		}
		idsBySlug[m.Slug] = m.ID
		report.mfosCreated++
	}

	keys, err := cli.satelliteSvc.Query(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "querying satellite keys")
	}
	existing := make(map[string]satellite.Key, len(keys))
	for _, k := range keys {
		existing[k.Key] = k
	}

	for _, sk := range sf.Keys {
		ids := make([]int, 0, len(sk.MFOs))
		for _, slug := range sk.MFOs {
			id, ok := idsBySlug[core.CleanString(slug, true /* lower */)]
			if !ok {
				return fmt.Errorf("satellite key %q: unknown mfo %q", sk.Key, slug)
			}
			ids = append(ids, id)
		}

		if k, ok := existing[core.CleanString(sk.Key, true /* lower */)]; ok {
			cs := relation.Diff(relation.NewSet(k.MFOIDs...), relation.NewSet(ids...))
			if cs.IsEmpty() {
				continue
			}
			if _, err = cli.satelliteSvc.ApplyMFOChanges(ctx, k.ID, cs, seedActor); err != nil {
				return errors.Wrapf(err, "updating satellite key %q", sk.Key)
			}
			report.keysUpdated++
			continue
		}

		nk := satellite.NewKey{Key: sk.Key, TitleUK: sk.TitleUK, TitleRU: sk.TitleRU, MFOIDs: ids}
		if err = nk.Validate(ctx, cli.validate, cli.satelliteSvc); err != nil {
			return errors.Wrapf(err, "satellite key %q", sk.Key)
		}
		if _, err = cli.satelliteSvc.Create(ctx, nk); err != nil {
			return errors.Wrapf(err, "creating satellite key %q", sk.Key)
		}
		report.keysCreated++
	}

	fmt.Fprintf(cli.out, "mfos: %d created, %d skipped\nsatellite keys: %d created, %d updated\n",
		report.mfosCreated, report.mfosSkipped, report.keysCreated, report.keysUpdated)
	return nil
}
