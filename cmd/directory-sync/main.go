// Command directory-sync reconciles one tenant's service directory against
// the warehouse snapshot.
package main

func main() {
	Execute()
}
