package model

// Package model defines domain data structures shared across the engine:
// download jobs, their lifecycle states, and the immutable option snapshot
// a job carries from submission to completion.
