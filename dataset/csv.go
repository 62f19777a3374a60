// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/gorse-io/gorse-rating/base"
	"github.com/gorse-io/gorse-rating/base/log"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Rating is an observed rating given by a user to an item.
type Rating struct {
	UserId string
	ItemId string
	Label  float32
}

// CanonicalId parses a numeric identifier and formats it in its shortest form,
// so that "6", "6.0" and "6e0" name the same entity. Integers are parsed exactly.
func CanonicalId(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.NotValidf("empty identifier")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(n, 10), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return "", errors.NotValidf("identifier %q", s)
	}
	return strconv.FormatFloat(v, 'f', -1, 64), nil
}

type csvIdentifier string

func (id *csvIdentifier) UnmarshalCSV(field string) error {
	s, err := CanonicalId(field)
	if err != nil {
		return err
	}
	*id = csvIdentifier(s)
	return nil
}

type csvLabel float32

func (label *csvLabel) UnmarshalCSV(field string) error {
	s := strings.TrimSpace(field)
	if s == "" {
		return errors.NotValidf("empty label")
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.NotValidf("label %q", s)
	}
	*label = csvLabel(v)
	return nil
}

// csvRating binds columns by position: user, item, label.
type csvRating struct {
	UserId csvIdentifier `csv:"userId"`
	ItemId csvIdentifier `csv:"movieId"`
	Label  csvLabel      `csv:"Label"`
}

// LoadRatings loads ratings from a comma-separated file with a header row.
func LoadRatings(path string) ([]Rating, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.WithType(errors.Annotatef(err, "failed to open %s", path), base.ErrLoad)
	}
	defer file.Close()
	ratings, err := ReadRatings(file)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to load %s", path)
	}
	log.Logger().Info("load ratings",
		zap.String("path", path),
		zap.Int("n_ratings", len(ratings)))
	return ratings, nil
}

// ReadRatings reads ratings from comma-separated text. The first row is a header and is skipped.
func ReadRatings(r io.Reader) ([]Rating, error) {
	reader := csv.NewReader(r)
	reader.Comma = ','
	reader.FieldsPerRecord = 3
	reader.TrimLeadingSpace = true
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return nil, errors.WithType(errors.NotValidf("missing header"), base.ErrLoad)
		}
		return nil, errors.WithType(errors.Annotate(err, "failed to read header"), base.ErrLoad)
	}
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.WithType(errors.Trace(err), base.ErrLoad)
	}
	if len(records) == 0 {
		return []Rating{}, nil
	}
	var rows []csvRating
	if err := gocsv.UnmarshalCSVWithoutHeaders(&bufferedRecords{records: records}, &rows); err != nil {
		return nil, errors.WithType(errors.Trace(err), base.ErrLoad)
	}
	return lo.Map(rows, func(row csvRating, _ int) Rating {
		return Rating{
			UserId: string(row.UserId),
			ItemId: string(row.ItemId),
			Label:  float32(row.Label),
		}
	}), nil
}

// bufferedRecords replays records that were already read and checked by csv.Reader.
type bufferedRecords struct {
	records [][]string
}

func (b *bufferedRecords) Read() ([]string, error) {
	if len(b.records) == 0 {
		return nil, io.EOF
	}
	record := b.records[0]
	b.records = b.records[1:]
	return record, nil
}

func (b *bufferedRecords) ReadAll() ([][]string, error) {
	records := b.records
	b.records = nil
	return records, nil
}
