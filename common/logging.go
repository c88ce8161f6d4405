package common

import "GPU_procedural_raytracing/log"

var logger = log.New("common")
