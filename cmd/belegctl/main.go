// Command belegctl inspects and exports the bookkeeping records from the
// terminal, using the same backends as the web dashboard.
package main

func main() {
	Execute()
}
