/*
Package soft provides an in-process implementation of the mmal component
contract, used on hosts without the vendor driver and in tests. Each
component runs one producer goroutine per active data path, mirroring the
driver's one-delivery-thread-per-port scheduling.

Importing the package registers the camera, splitter and encoder
components with the mmal registry:

	import _ "github.com/kaimana/picamd/internal/mmal/soft"
*/
package soft
