// Package script runs pipeline scripts written in Starlark.
//
// A script loads the built-ins from the "anlchain" module and the module
// namespaces it needs from registered packages, then defines an app:
//
//	load("anlchain", "app", "vec")
//	load("sample", "Sample")
//
//	def Calibrate(anl):
//	    anl.add_namespace(Sample)
//	    anl.chain("Generator")
//	    anl.with_parameters({"mean": 2.5, "origin": vec(0, 0, 1)})
//
//	anl = app(Calibrate)
//	anl.run(1000)
//
// Scripts generated by docgen.GenerateScript run unchanged.
package script
