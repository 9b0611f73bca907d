// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

//go:build !linux && !darwin

package metrics

func processCPUSeconds() float64 {
	return 0
}
