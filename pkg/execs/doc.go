// Package execs launches and supervises the external process that runs a
// single work unit.
//
// A [Command] is a template: the [UnitPlaceholder] in its command and
// arguments is replaced by the unit name at launch time. [Launcher] turns a
// template into running [Process] handles, which can be polled without
// blocking and terminated with a SIGTERM grace period followed by SIGKILL.
package execs
