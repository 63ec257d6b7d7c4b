// Package compiler turns tape-language source into resolved programs.
//
// Pipeline: source → Lex → expand declarations and calls → bind loops → instr.Program
//
// Macros ($) and procedures (@) are substituted textually at every call site.
// Functions (§) compile to a deferred call that the VM expands on demand
// through CompileCall, so they may recurse.
package compiler
