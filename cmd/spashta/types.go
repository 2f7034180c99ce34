package main

import "errors"

// CLIResult is the top-level JSON envelope for every command.
type CLIResult struct {
	Command    string `json:"command"`
	Graph      string `json:"graph,omitempty"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

var errValidateFailed = errors.New("profile or adapter validation failed")
