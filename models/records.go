// models/records.go
package models

import (
	"fmt"
	"time"
)

// EventRecord is the canonical normalized form of one GDELT events row
// (reduced column set). Nullable columns use pointer fields so empty
// publisher values survive as JSON/BSON nulls instead of zero values.
type EventRecord struct {
	GlobalEventID     int64     `json:"GLOBALEVENTID" bson:"GLOBALEVENTID"`
	Actor1Code        *string   `json:"Actor1Code" bson:"Actor1Code"`
	Actor1Name        *string   `json:"Actor1Name" bson:"Actor1Name"`
	Actor1CountryCode *string   `json:"Actor1CountryCode" bson:"Actor1CountryCode"`
	Actor1Type1Code   *string   `json:"Actor1Type1Code" bson:"Actor1Type1Code"`
	Actor1Type2Code   *string   `json:"Actor1Type2Code" bson:"Actor1Type2Code"`
	Actor1Type3Code   *string   `json:"Actor1Type3Code" bson:"Actor1Type3Code"`
	Actor2Code        *string   `json:"Actor2Code" bson:"Actor2Code"`
	Actor2Name        *string   `json:"Actor2Name" bson:"Actor2Name"`
	Actor2CountryCode *string   `json:"Actor2CountryCode" bson:"Actor2CountryCode"`
	Actor2Type1Code   *string   `json:"Actor2Type1Code" bson:"Actor2Type1Code"`
	Actor2Type2Code   *string   `json:"Actor2Type2Code" bson:"Actor2Type2Code"`
	Actor2Type3Code   *string   `json:"Actor2Type3Code" bson:"Actor2Type3Code"`
	IsRootEvent       bool      `json:"IsRootEvent" bson:"IsRootEvent"`
	EventCode         *string   `json:"EventCode" bson:"EventCode"`
	EventBaseCode     *string   `json:"EventBaseCode" bson:"EventBaseCode"`
	EventRootCode     *string   `json:"EventRootCode" bson:"EventRootCode"`
	QuadClass         int       `json:"QuadClass" bson:"QuadClass"`
	AvgTone           float64   `json:"AvgTone" bson:"AvgTone"`
	Actor1GeoType     int       `json:"Actor1Geo_Type" bson:"Actor1Geo_Type"`
	Actor1GeoFullName *string   `json:"Actor1Geo_FullName" bson:"Actor1Geo_FullName"`
	Actor1GeoLat      *float64  `json:"Actor1Geo_Lat" bson:"Actor1Geo_Lat"`
	Actor1GeoLong     *float64  `json:"Actor1Geo_Long" bson:"Actor1Geo_Long"`
	Actor2GeoType     int       `json:"Actor2Geo_Type" bson:"Actor2Geo_Type"`
	Actor2GeoFullName *string   `json:"Actor2Geo_FullName" bson:"Actor2Geo_FullName"`
	Actor2GeoLat      *float64  `json:"Actor2Geo_Lat" bson:"Actor2Geo_Lat"`
	Actor2GeoLong     *float64  `json:"Actor2Geo_Long" bson:"Actor2Geo_Long"`
	ActionGeoType     int       `json:"ActionGeo_Type" bson:"ActionGeo_Type"`
	ActionGeoFullName *string   `json:"ActionGeo_FullName" bson:"ActionGeo_FullName"`
	ActionGeoLat      *float64  `json:"ActionGeo_Lat" bson:"ActionGeo_Lat"`
	ActionGeoLong     *float64  `json:"ActionGeo_Long" bson:"ActionGeo_Long"`
	DateAdded         time.Time `json:"DATEADDED" bson:"DATEADDED"`
	SourceURL         *string   `json:"SOURCEURL" bson:"SOURCEURL"`
}

// DocumentKey is the natural key used as the store document id, making
// repeated loads upserts rather than duplicate inserts.
func (r EventRecord) DocumentKey() interface{} {
	return r.GlobalEventID
}

// MentionRecord is the canonical normalized form of one GDELT mentions row.
// GLOBALEVENTID alone is not unique here (one event is mentioned by many
// articles), so the natural key pairs it with the mention identifier.
type MentionRecord struct {
	GlobalEventID     int64     `json:"GLOBALEVENTID" bson:"GLOBALEVENTID"`
	EventTimeDate     time.Time `json:"EventTimeDate" bson:"EventTimeDate"`
	MentionTimeDate   time.Time `json:"MentionTimeDate" bson:"MentionTimeDate"`
	MentionType       *string   `json:"MentionType" bson:"MentionType"`
	MentionSourceName *string   `json:"MentionSourceName" bson:"MentionSourceName"`
	MentionIdentifier string    `json:"MentionIdentifier" bson:"MentionIdentifier"`
	InRawText         bool      `json:"InRawText" bson:"InRawText"`
	Confidence        int       `json:"Confidence" bson:"Confidence"`
	MentionDocTone    float64   `json:"MentionDocTone" bson:"MentionDocTone"`
}

func (r MentionRecord) DocumentKey() interface{} {
	return fmt.Sprintf("%d:%s", r.GlobalEventID, r.MentionIdentifier)
}

// GKGRecord is the canonical normalized form of one GDELT knowledge-graph
// row. The variable-length subfielded columns (counts, themes, locations,
// persons, organizations, tone) are carried as opaque raw strings; their
// structured expansion is deliberately out of scope.
type GKGRecord struct {
	GKGRecordID      string    `json:"GKGRECORDID" bson:"GKGRECORDID"`
	Date             time.Time `json:"V21DATE" bson:"V21DATE"`
	SourceCommonName *string   `json:"V2SourceCommonName" bson:"V2SourceCommonName"`
	DocumentID       *string   `json:"V2DocumentIdentifier" bson:"V2DocumentIdentifier"`
	Counts           *string   `json:"V1Counts" bson:"V1Counts"`
	Themes           *string   `json:"V1Themes" bson:"V1Themes"`
	Locations        *string   `json:"V1Locations" bson:"V1Locations"`
	Persons          *string   `json:"V1Persons" bson:"V1Persons"`
	Organizations    *string   `json:"V1Organizations" bson:"V1Organizations"`
	Tone             *string   `json:"V15Tone" bson:"V15Tone"`
}

func (r GKGRecord) DocumentKey() interface{} {
	return r.GKGRecordID
}

// TableProjection is the in-memory tabular shape handed to the report
// collaborator: store records for one table over a queried time range.
type TableProjection struct {
	Table   Table
	Columns []string
	From    time.Time
	To      time.Time
	Records []map[string]interface{}
}
