// Package engine wraps the external demucs separation executable behind a
// narrow typed boundary.
//
// The worker hands it an input file, an output directory, and a model name;
// the engine produces a vocals stem and a non-vocals stem somewhere under
// the output directory at a path of its own choosing. Argument problems and
// engine failures surface as ErrInvalidArgs and ErrEngine respectively so
// the worker can record both as a terminal job error without telling them
// apart.
package engine
