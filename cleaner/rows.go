// cleaner/rows.go
package cleaner

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/feedmill/gdeltflow/models"
)

// castError carries the offending column through the conversion helpers so
// CleanFile can wrap it into a file-scoped CleanError.
type castError struct {
	column string
	err    error
}

func (e *castError) Error() string {
	return fmt.Sprintf("column %q: %v", e.column, e.err)
}

func (e *castError) Unwrap() error { return e.err }

// recordTimeLayout is the 14-digit datetime format GDELT uses inside record
// fields (same shape as the file-name prefix).
const recordTimeLayout = "20060102150405"

// eventRow mirrors the reduced events columns as raw strings; typed casting
// happens in toRecord so failures can name their column. Columns of the
// original layout without a tag here are decoded and discarded.
type eventRow struct {
	GlobalEventID     string `csv:"GLOBALEVENTID"`
	Actor1Code        string `csv:"Actor1Code"`
	Actor1Name        string `csv:"Actor1Name"`
	Actor1CountryCode string `csv:"Actor1CountryCode"`
	Actor1Type1Code   string `csv:"Actor1Type1Code"`
	Actor1Type2Code   string `csv:"Actor1Type2Code"`
	Actor1Type3Code   string `csv:"Actor1Type3Code"`
	Actor2Code        string `csv:"Actor2Code"`
	Actor2Name        string `csv:"Actor2Name"`
	Actor2CountryCode string `csv:"Actor2CountryCode"`
	Actor2Type1Code   string `csv:"Actor2Type1Code"`
	Actor2Type2Code   string `csv:"Actor2Type2Code"`
	Actor2Type3Code   string `csv:"Actor2Type3Code"`
	IsRootEvent       string `csv:"IsRootEvent"`
	EventCode         string `csv:"EventCode"`
	EventBaseCode     string `csv:"EventBaseCode"`
	EventRootCode     string `csv:"EventRootCode"`
	QuadClass         string `csv:"QuadClass"`
	AvgTone           string `csv:"AvgTone"`
	Actor1GeoType     string `csv:"Actor1Geo_Type"`
	Actor1GeoFullName string `csv:"Actor1Geo_FullName"`
	Actor1GeoLat      string `csv:"Actor1Geo_Lat"`
	Actor1GeoLong     string `csv:"Actor1Geo_Long"`
	Actor2GeoType     string `csv:"Actor2Geo_Type"`
	Actor2GeoFullName string `csv:"Actor2Geo_FullName"`
	Actor2GeoLat      string `csv:"Actor2Geo_Lat"`
	Actor2GeoLong     string `csv:"Actor2Geo_Long"`
	ActionGeoType     string `csv:"ActionGeo_Type"`
	ActionGeoFullName string `csv:"ActionGeo_FullName"`
	ActionGeoLat      string `csv:"ActionGeo_Lat"`
	ActionGeoLong     string `csv:"ActionGeo_Long"`
	DateAdded         string `csv:"DATEADDED"`
	SourceURL         string `csv:"SOURCEURL"`
}

func (row eventRow) toRecord() (models.EventRecord, error) {
	var rec models.EventRecord
	var err error

	if rec.GlobalEventID, err = reqInt64("GLOBALEVENTID", row.GlobalEventID); err != nil {
		return rec, err
	}
	rec.Actor1Code = optString(row.Actor1Code)
	rec.Actor1Name = optString(row.Actor1Name)
	rec.Actor1CountryCode = optString(row.Actor1CountryCode)
	rec.Actor1Type1Code = optString(row.Actor1Type1Code)
	rec.Actor1Type2Code = optString(row.Actor1Type2Code)
	rec.Actor1Type3Code = optString(row.Actor1Type3Code)
	rec.Actor2Code = optString(row.Actor2Code)
	rec.Actor2Name = optString(row.Actor2Name)
	rec.Actor2CountryCode = optString(row.Actor2CountryCode)
	rec.Actor2Type1Code = optString(row.Actor2Type1Code)
	rec.Actor2Type2Code = optString(row.Actor2Type2Code)
	rec.Actor2Type3Code = optString(row.Actor2Type3Code)
	if rec.IsRootEvent, err = reqBool("IsRootEvent", row.IsRootEvent); err != nil {
		return rec, err
	}
	rec.EventCode = optString(row.EventCode)
	rec.EventBaseCode = optString(row.EventBaseCode)
	rec.EventRootCode = optString(row.EventRootCode)
	if rec.QuadClass, err = reqInt("QuadClass", row.QuadClass); err != nil {
		return rec, err
	}
	if rec.AvgTone, err = reqFloat("AvgTone", row.AvgTone); err != nil {
		return rec, err
	}
	if rec.Actor1GeoType, err = optInt("Actor1Geo_Type", row.Actor1GeoType); err != nil {
		return rec, err
	}
	rec.Actor1GeoFullName = optString(row.Actor1GeoFullName)
	if rec.Actor1GeoLat, err = optLatLong("Actor1Geo_Lat", row.Actor1GeoLat); err != nil {
		return rec, err
	}
	if rec.Actor1GeoLong, err = optLatLong("Actor1Geo_Long", row.Actor1GeoLong); err != nil {
		return rec, err
	}
	if rec.Actor2GeoType, err = optInt("Actor2Geo_Type", row.Actor2GeoType); err != nil {
		return rec, err
	}
	rec.Actor2GeoFullName = optString(row.Actor2GeoFullName)
	if rec.Actor2GeoLat, err = optLatLong("Actor2Geo_Lat", row.Actor2GeoLat); err != nil {
		return rec, err
	}
	if rec.Actor2GeoLong, err = optLatLong("Actor2Geo_Long", row.Actor2GeoLong); err != nil {
		return rec, err
	}
	if rec.ActionGeoType, err = optInt("ActionGeo_Type", row.ActionGeoType); err != nil {
		return rec, err
	}
	rec.ActionGeoFullName = optString(row.ActionGeoFullName)
	if rec.ActionGeoLat, err = optLatLong("ActionGeo_Lat", row.ActionGeoLat); err != nil {
		return rec, err
	}
	if rec.ActionGeoLong, err = optLatLong("ActionGeo_Long", row.ActionGeoLong); err != nil {
		return rec, err
	}
	if rec.DateAdded, err = reqTime("DATEADDED", row.DateAdded); err != nil {
		return rec, err
	}
	rec.SourceURL = optString(row.SourceURL)
	return rec, nil
}

type mentionRow struct {
	GlobalEventID     string `csv:"GLOBALEVENTID"`
	EventTimeDate     string `csv:"EventTimeDate"`
	MentionTimeDate   string `csv:"MentionTimeDate"`
	MentionType       string `csv:"MentionType"`
	MentionSourceName string `csv:"MentionSourceName"`
	MentionIdentifier string `csv:"MentionIdentifier"`
	InRawText         string `csv:"InRawText"`
	Confidence        string `csv:"Confidence"`
	MentionDocTone    string `csv:"MentionDocTone"`
}

func (row mentionRow) toRecord() (models.MentionRecord, error) {
	var rec models.MentionRecord
	var err error

	if rec.GlobalEventID, err = reqInt64("GLOBALEVENTID", row.GlobalEventID); err != nil {
		return rec, err
	}
	if rec.EventTimeDate, err = reqTime("EventTimeDate", row.EventTimeDate); err != nil {
		return rec, err
	}
	if rec.MentionTimeDate, err = reqTime("MentionTimeDate", row.MentionTimeDate); err != nil {
		return rec, err
	}
	rec.MentionType = optString(row.MentionType)
	rec.MentionSourceName = optString(row.MentionSourceName)
	rec.MentionIdentifier = row.MentionIdentifier
	if rec.InRawText, err = reqBool("InRawText", row.InRawText); err != nil {
		return rec, err
	}
	if rec.Confidence, err = reqInt("Confidence", row.Confidence); err != nil {
		return rec, err
	}
	if rec.MentionDocTone, err = reqFloat("MentionDocTone", row.MentionDocTone); err != nil {
		return rec, err
	}
	return rec, nil
}

// gkgRow keeps the subfielded columns opaque; only the id, datetime, and the
// two source columns get typed.
type gkgRow struct {
	GKGRecordID      string `csv:"GKGRECORDID"`
	Date             string `csv:"V21DATE"`
	SourceCommonName string `csv:"V2SourceCommonName"`
	DocumentID       string `csv:"V2DocumentIdentifier"`
	Counts           string `csv:"V1Counts"`
	Themes           string `csv:"V1Themes"`
	Locations        string `csv:"V1Locations"`
	Persons          string `csv:"V1Persons"`
	Organizations    string `csv:"V1Organizations"`
	Tone             string `csv:"V15Tone"`
}

func (row gkgRow) toRecord() (models.GKGRecord, error) {
	var rec models.GKGRecord
	var err error

	if row.GKGRecordID == "" {
		return rec, &castError{column: "GKGRECORDID", err: fmt.Errorf("empty record id")}
	}
	rec.GKGRecordID = row.GKGRecordID
	if rec.Date, err = reqTime("V21DATE", row.Date); err != nil {
		return rec, err
	}
	rec.SourceCommonName = optString(row.SourceCommonName)
	rec.DocumentID = optString(row.DocumentID)
	rec.Counts = optString(row.Counts)
	rec.Themes = optString(row.Themes)
	rec.Locations = optString(row.Locations)
	rec.Persons = optString(row.Persons)
	rec.Organizations = optString(row.Organizations)
	rec.Tone = optString(row.Tone)
	return rec, nil
}

func optString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func reqInt64(column, v string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, &castError{column: column, err: err}
	}
	return n, nil
}

func reqInt(column, v string) (int, error) {
	n, err := reqInt64(column, v)
	return int(n), err
}

// optInt treats an empty value as zero, matching the publisher's habit of
// leaving geo type columns blank on some translated records.
func optInt(column, v string) (int, error) {
	if strings.TrimSpace(v) == "" {
		return 0, nil
	}
	return reqInt(column, v)
}

func reqFloat(column, v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, &castError{column: column, err: err}
	}
	return f, nil
}

func reqBool(column, v string) (bool, error) {
	switch strings.TrimSpace(v) {
	case "", "0":
		return false, nil
	case "1":
		return true, nil
	}
	return false, &castError{column: column, err: fmt.Errorf("expected 0 or 1, got %q", v)}
}

func reqTime(column, v string) (time.Time, error) {
	ts, err := time.ParseInLocation(recordTimeLayout, strings.TrimSpace(v), time.UTC)
	if err != nil {
		return time.Time{}, &castError{column: column, err: err}
	}
	return ts, nil
}

// optLatLong casts a latitude/longitude value, stripping the stray '#'
// characters that occasionally corrupt events coordinate fields upstream.
func optLatLong(column, v string) (*float64, error) {
	v = strings.ReplaceAll(strings.TrimSpace(v), "#", "")
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, &castError{column: column, err: err}
	}
	return &f, nil
}
