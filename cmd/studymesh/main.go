// Command studymesh serves and queries the textbook question-answering graph.
package main

func main() {
	Execute()
}
