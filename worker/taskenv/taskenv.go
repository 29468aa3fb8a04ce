// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package taskenv builds the parameter maps injected into task executions:
// the global parameter map with its derived sync-date timestamps, and the
// schedule-time business parameters.
package taskenv

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/cascade-workflow/cascade/worker/structs"
)

const (
	// ParameterDatetime is the well known business parameter carrying the
	// schedule time, consumed by downstream scripts.
	ParameterDatetime = "system.datetime"

	// ParameterFormatTime is the layout of ParameterDatetime values.
	ParameterFormatTime = "20060102150405"

	// paramSyncDate triggers derivation of the timestamp parameters below.
	paramSyncDate = "syncDate"

	// Derived parameter keys. The names are bit-exact contracts consumed by
	// downstream scripts.
	paramStartTimestamp  = "start_time_stamp"
	paramEndTimestamp    = "end_time_stamp"
	paramStartTimestampS = "start_time_stamp_s"
	paramEndTimestampS   = "end_time_stamp_s"

	// syncDateLayout is the expected syncDate value format, parsed in the
	// process-local time zone.
	syncDateLayout = "2006-01-02"

	// endOfDayOffsetMillis is the millisecond distance between the start and
	// end of one day: 86399 seconds.
	endOfDayOffsetMillis = 86399 * 1000
)

// BuildGlobalParamsMap deserializes the global parameter list and flattens it
// into a name to value map. When a syncDate property is present, four derived
// timestamp entries are added first; an unparseable syncDate yields empty
// strings for all four rather than an error. User supplied properties are
// overlaid last, so they win over derived entries.
func BuildGlobalParamsMap(globalParams string) map[string]string {
	globalParamsMap := make(map[string]string)
	if globalParams == "" {
		return globalParamsMap
	}

	var properties []structs.Property
	if err := json.Unmarshal([]byte(globalParams), &properties); err != nil {
		return globalParamsMap
	}

	syncDate := ""
	found := false
	for _, property := range properties {
		if property.Prop == paramSyncDate {
			syncDate = property.Value
			found = true
			break
		}
	}
	if found {
		for key, value := range deriveTimestamps(syncDate) {
			globalParamsMap[key] = value
		}
	}

	for _, property := range properties {
		globalParamsMap[property.Prop] = property.Value
	}
	return globalParamsMap
}

// deriveTimestamps computes the four timestamp parameters from a syncDate
// value normalized to 00:00:00 local time.
func deriveTimestamps(syncDate string) map[string]string {
	dayStart, err := time.ParseInLocation(syncDateLayout, syncDate, time.Local)
	if err != nil {
		return map[string]string{
			paramStartTimestamp:  "",
			paramEndTimestamp:    "",
			paramStartTimestampS: "",
			paramEndTimestampS:   "",
		}
	}

	startMillis := dayStart.UnixMilli()
	endMillis := startMillis + endOfDayOffsetMillis
	return map[string]string{
		paramStartTimestamp:  strconv.FormatInt(startMillis, 10),
		paramEndTimestamp:    strconv.FormatInt(endMillis, 10),
		paramStartTimestampS: strconv.FormatInt(startMillis/1000, 10),
		paramEndTimestampS:   strconv.FormatInt(endMillis/1000, 10),
	}
}

// PreBuildBusinessParams emits the schedule-time business parameters. A zero
// schedule time yields an empty map.
func PreBuildBusinessParams(scheduleTime time.Time) map[string]*structs.Property {
	paramsMap := make(map[string]*structs.Property)
	if scheduleTime.IsZero() {
		return paramsMap
	}
	paramsMap[ParameterDatetime] = &structs.Property{
		Prop:  ParameterDatetime,
		Value: scheduleTime.Format(ParameterFormatTime),
	}
	return paramsMap
}
