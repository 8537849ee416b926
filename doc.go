// Package bindle contains a Bindle client, types, and other utilities for interacting with a Bindle
// server. For more information on Bindle, see the main project page:
// https://github.com/deislabs/bindle. There is nothing exported at this top level, but each
// subpackage contains more information on its functionality
package bindle
