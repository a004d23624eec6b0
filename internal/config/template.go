package config

import "fmt"

func DefaultTemplate() string {
	return fmt.Sprintf(`version: 1
nuitka:
  # Path or name of the nuitka executable. Empty means search PATH and the
  # usual virtualenv locations.
  bin: ""
  min_version: %q
  # Console encoding of the compiler output, e.g. "gbk". Empty means UTF-8.
  output_encoding: ""
presets_dir: %q
default_output_dir: %q
# 0 disables the timeout.
command_timeout_seconds: 0
progress:
  tick_interval_ms: %d
  tick_increment: %d
  # Lines containing this text add line_nudge_increment points to the
  # current stage. An empty marker or 0 turns it off.
  line_nudge_marker: %q
  line_nudge_increment: %d
  # Uncomment to replace the built-in stage table. Weights must sum to 100.
  # stages:
  #   - {name: "Init", weight: 5, marker: "Initializing"}
  #   - {name: "CompileMain", weight: 30, marker: "Compiling module"}
  #   - {name: "Dependencies", weight: 15, marker: "Doing module dependency"}
  #   - {name: "DataFiles", weight: 10, marker: "Including data files"}
  #   - {name: "CodeGen", weight: 15, marker: "Generating C source"}
  #   - {name: "CompileBinary", weight: 20, marker: "Compiling C source"}
  #   - {name: "FinalPackage", weight: 5, marker: "Creating binary"}
  # final_markers: ["Successfully created", "输出文件:"]
logging:
  level: "info"
  format: "text"
`, "1.0.0", defaultPresetsDir(), "dist", 80, 2, "Progress", 5)
}
