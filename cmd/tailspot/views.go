package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"tailspot/internal/api"
)

// parseID parses a positive row id argument; kind names the entity for the
// error message.
func parseID(kind, arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, arg)
	}
	return id, nil
}

// jobStatusOrder fixes the display order of per-status job counts.
var jobStatusOrder = []string{"queued", "running", "retrying", "succeeded", "failed"}

func buildJobStatusRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(stats))
	listed := make(map[string]struct{}, len(stats))
	for _, status := range jobStatusOrder {
		if count, ok := stats[status]; ok {
			rows = append(rows, []string{formatStatusLabel(status), strconv.Itoa(count)})
			listed[status] = struct{}{}
		}
	}
	var extras []string
	for status := range stats {
		if _, ok := listed[status]; !ok {
			extras = append(extras, status)
		}
	}
	sort.Strings(extras)
	for _, status := range extras {
		rows = append(rows, []string{formatStatusLabel(status), strconv.Itoa(stats[status])})
	}
	return rows
}

// formatStatusLabel turns snake_case status values into display labels.
func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

var (
	flightHeaders = []string{"ID", "Date", "Flight", "Registration", "Route", "Aircraft"}
	flightAligns  = []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft}
)

func buildFlightRows(flights []api.FlightView) [][]string {
	rows := make([][]string, 0, len(flights))
	for _, flight := range flights {
		rows = append(rows, []string{
			strconv.FormatInt(flight.ID, 10),
			flight.FlightDate,
			orDash(flight.FlightNumber),
			orDash(flight.Registration),
			flight.Route,
			orDash(flight.Aircraft),
		})
	}
	return rows
}

var (
	jobHeaders = []string{"ID", "Registration", "Source", "Status", "Attempts", "Photos", "Next scan", "Last error"}
	jobAligns  = []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft}
)

func buildJobRows(jobs []api.JobView) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			strconv.FormatInt(job.ID, 10),
			job.Registration,
			job.Source,
			formatStatusLabel(job.Status),
			strconv.Itoa(job.Attempts),
			strconv.Itoa(job.PhotosFound),
			formatTime(job.NextScanAt),
			truncate(orDash(job.LastError), 48),
		})
	}
	return rows
}

var (
	runHeaders = []string{"ID", "Registration", "Source", "Outcome", "Photos", "Duration", "Finished"}
	runAligns  = []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft}
)

func buildRunRows(runs []api.RunView) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		finished := run.FinishedAt
		rows = append(rows, []string{
			strconv.FormatInt(run.ID, 10),
			run.Registration,
			run.Source,
			formatStatusLabel(run.Outcome),
			strconv.Itoa(run.PhotosFound),
			formatSeconds(run.DurationSeconds),
			formatTime(&finished),
		})
	}
	return rows
}

var (
	reviewHeaders = []string{"ID", "Registration", "Source", "Score", "Photo date", "Flight", "URL"}
	reviewAligns  = []columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft}
)

func buildReviewRows(items []api.ReviewItemView) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		flight := "-"
		if item.Flight != nil {
			flight = fmt.Sprintf("%s %s", item.Flight.FlightDate, item.Flight.Route)
		}
		rows = append(rows, []string{
			strconv.FormatInt(item.Photo.ID, 10),
			item.Photo.Registration,
			item.Photo.Source,
			strconv.Itoa(item.Photo.Score),
			formatDate(item.Photo.PhotoDate),
			flight,
			truncate(item.Photo.PageURL, 60),
		})
	}
	return rows
}

var (
	libraryHeaders = []string{"Registration", "ID", "Date", "Route", "Source", "Score", "URL"}
	libraryAligns  = []columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}
)

// buildLibraryRows flattens the grouped library; the registration cell is
// only filled on each group's first row.
func buildLibraryRows(groups []api.LibraryGroupView) [][]string {
	var rows [][]string
	for _, group := range groups {
		for i, entry := range group.Entries {
			registration := ""
			if i == 0 {
				registration = group.Registration
			}
			date := formatDate(entry.Photo.PhotoDate)
			if date == "-" && entry.FlightDate != "" {
				date = entry.FlightDate
			}
			rows = append(rows, []string{
				registration,
				strconv.FormatInt(entry.Photo.ID, 10),
				date,
				orDash(entry.Route),
				entry.Photo.Source,
				strconv.Itoa(entry.Photo.Score),
				truncate(entry.Photo.PageURL, 60),
			})
		}
	}
	return rows
}

func libraryCounts(groups []api.LibraryGroupView) (registrations, photos int) {
	for _, group := range groups {
		if len(group.Entries) == 0 {
			continue
		}
		registrations++
		photos += len(group.Entries)
	}
	return registrations, photos
}
