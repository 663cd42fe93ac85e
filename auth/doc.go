/*
Package auth defines the mechanisms charon can use to decide whether user credentials
supplied via LOGIN are valid. Available are an authenticator that accepts every user
name and password pair and a simple lookup in a text file of user and password lines.
*/
package auth
