// Package buildenv computes the execution context of a recipe stage.
//
// For every (recipe, target, stage) triple a [Context] fixes the working
// directory, the shell and the complete environment a step runs with. The
// environment is built from the recipe's custom variables with the reserved
// PKGER_* variables laid on top; nothing from the host process leaks in.
//
// The build and install stages always start in the job's build and output
// directories. Only the configure stage honors a declared working_dir.
package buildenv
