//go:build mage

package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
)

const (
	shaderDir     = "assets/shaders"
	glslSourceDir = "assets/shaders/glsl"
)

type Build mg.Namespace

// Compiles every GLSL compute shader to SPIR-V with glslc.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the testbed binary.
func (Build) Testbed() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("build", "-o", "bin/cgpu", "."), withStream())
	return err
}

func buildShaders() error {
	sources, err := filepath.Glob(filepath.Join(glslSourceDir, "*.comp"))
	if err != nil {
		return err
	}
	for _, src := range sources {
		name := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
		out := filepath.Join(shaderDir, name+".spv")
		if upToDate(src, out) {
			continue
		}
		if _, err := executeCmd("glslc", withArgs("--target-env=vulkan1.1", "-fshader-stage=compute", src, "-o", out), withStream()); err != nil {
			return err
		}
	}
	return nil
}

// upToDate reports whether out exists and is newer than src.
func upToDate(src, out string) bool {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false
	}
	outInfo, err := os.Stat(out)
	if err != nil {
		return false
	}
	return outInfo.ModTime().After(srcInfo.ModTime())
}
